package config

import (
	"os"
	"strconv"
)

type Runtime struct {
	Draws         int
	Warmup        int
	Chains        int
	Seed          uint64
	SeedSet       bool
	CacheMaxItems int
	ObsBuffer     int
}

func Load() Runtime {
	seed, seedSet := getenvUint64("BAYES_SEED")
	return Runtime{
		Draws:         getenvInt("BAYES_DRAWS", 10_000, 1),
		Warmup:        getenvInt("BAYES_WARMUP", 2_000, 0),
		Chains:        getenvInt("BAYES_CHAINS", 1, 1),
		Seed:          seed,
		SeedSet:       seedSet,
		CacheMaxItems: getenvInt("MODEL_CACHE_MAX_ITEMS", 128, 1),
		ObsBuffer:     getenvInt("SAMPLER_OBS_BUFFER", 64, 1),
	}
}

func getenvInt(key string, fallback, min int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		return fallback
	}
	return v
}

func getenvUint64(key string) (uint64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
