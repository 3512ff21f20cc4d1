package env

import (
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Source tells which launcher produced the launch parameters.
type Source int

const (
	None Source = iota
	Env
	Slurm
)

var sourceNames = map[Source]string{
	None:  "none",
	Env:   "env",
	Slurm: "slurm",
}

func (s Source) String() string {
	return sourceNames[s]
}

// Launch holds the launch parameters of one worker process.
type Launch struct {
	Source     Source
	Rank       int
	WorldSize  int
	LocalRank  int
	MasterAddr string
	MasterPort int
	RunID      uuid.UUID
}

// Distributed reports whether a multi-process launch was detected.
func (l Launch) Distributed() bool {
	return l.Source != None
}

type lookupFunc func(string) (string, bool)

// ParseLaunchFromEnv detects a multi-process launch from the process environment.
// worldSize is used when the launcher does not export one (SLURM without SLURM_NTASKS).
func ParseLaunchFromEnv(worldSize int) (*Launch, error) {
	return parseLaunch(os.LookupEnv, worldSize)
}

func parseLaunch(lookup lookupFunc, worldSize int) (*Launch, error) {
	runID, err := parseRunID(lookup)
	if err != nil {
		return nil, err
	}
	l := &Launch{RunID: runID, WorldSize: 1}
	if rank, ok := lookup(RankEnvKey); ok {
		size, ok := lookup(WorldSizeEnvKey)
		if !ok {
			return nil, errors.Errorf("%s is set but %s is not", RankEnvKey, WorldSizeEnvKey)
		}
		l.Source = Env
		if l.Rank, err = parseInt(RankEnvKey, rank); err != nil {
			return nil, err
		}
		if l.WorldSize, err = parseInt(WorldSizeEnvKey, size); err != nil {
			return nil, err
		}
		if val, ok := lookup(LocalRankEnvKey); ok {
			if l.LocalRank, err = parseInt(LocalRankEnvKey, val); err != nil {
				return nil, err
			}
		}
	} else if procID, ok := lookup(SlurmProcIDEnvKey); ok {
		l.Source = Slurm
		if l.Rank, err = parseInt(SlurmProcIDEnvKey, procID); err != nil {
			return nil, err
		}
		l.WorldSize = worldSize
		if val, ok := lookup(SlurmNTasksEnvKey); ok {
			if l.WorldSize, err = parseInt(SlurmNTasksEnvKey, val); err != nil {
				return nil, err
			}
		}
		l.LocalRank = l.Rank % visibleDeviceCount(lookup)
	} else {
		return l, nil
	}
	if l.Rank < 0 || l.Rank >= l.WorldSize {
		return nil, errors.Errorf("invalid rank %d for world size %d", l.Rank, l.WorldSize)
	}
	l.MasterAddr, _ = lookup(MasterAddrEnvKey)
	l.MasterPort = DefaultMasterPort
	if val, ok := lookup(MasterPortEnvKey); ok {
		if l.MasterPort, err = parseInt(MasterPortEnvKey, val); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func parseInt(key, val string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}

func parseRunID(lookup lookupFunc) (uuid.UUID, error) {
	val, ok := lookup(RunIDEnvKey)
	if !ok || len(val) == 0 {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "invalid %s", RunIDEnvKey)
	}
	return id, nil
}
