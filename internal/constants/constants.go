package constants

import "time"

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	ClientTimeout   = 10 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBusyTimeout     = 5 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTopRankSize = 7
	MaxTopRankSize     = 100
)

// member numbers are 9 digits
const (
	MemberNoMin      = 100000000
	MemberNoMax      = 999999999
	MemberNoAttempts = 5
)

const (
	RankStrategyScan     = "scan"
	RankStrategySkipList = "skiplist"
)

const (
	MaxRequestBodyBytes = 1 << 16
)
