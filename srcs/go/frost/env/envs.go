package env

// Environment variables set by frost-run (and compatible launchers) for every worker.
const (
	RankEnvKey       = `RANK`
	WorldSizeEnvKey  = `WORLD_SIZE`
	LocalRankEnvKey  = `LOCAL_RANK`
	MasterAddrEnvKey = `MASTER_ADDR`
	MasterPortEnvKey = `MASTER_PORT`
	RunIDEnvKey      = `FROST_RUN_ID`
	ParentEnvKey     = `FROST_PARENT`
)

// Environment variables set by SLURM's srun.
const (
	SlurmProcIDEnvKey = `SLURM_PROCID`
	SlurmNTasksEnvKey = `SLURM_NTASKS`
)

const DefaultMasterPort = 29500
