package usecase

import (
	"github.com/FilipeAphrody/sentinel-panel/internal/testutil"
)

type (
	memUserRepo   = testutil.MemUserRepo
	memAPIKeyRepo = testutil.MemAPIKeyRepo
)

var (
	fastParams       = testutil.FastHashParams
	newMemUserRepo   = testutil.NewMemUserRepo
	newMemAPIKeyRepo = testutil.NewMemAPIKeyRepo
	discardLogger    = testutil.DiscardLogger
	newCounters      = testutil.RedisRepos
)
