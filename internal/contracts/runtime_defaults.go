package contracts

import "time"

const (
	DefaultWorkspaceDir   = ".cmt"
	DefaultMappingPath    = ".cmt/map.json"
	DefaultConfigFilePath = ".cmt/config.yaml"
	DefaultLockFilePath   = ".cmt/lock"
)

const (
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultRetryMaxAttempts = 3
	DefaultRetryBaseBackoff = 500 * time.Millisecond
	DefaultRetryMaxBackoff  = 30 * time.Second
)

const (
	DefaultLockStaleAfter     = 15 * time.Minute
	DefaultLockAcquireTimeout = 30 * time.Second
	DefaultLockPollInterval   = 200 * time.Millisecond
)

// DefaultFidelityThreshold is the corpus-average gate applied by the
// validate command when no threshold is configured.
const DefaultFidelityThreshold = 0.95

// DefaultWatchDebounce is how long the watch command waits after the last
// filesystem event before pushing the accumulated changes.
const DefaultWatchDebounce = 500 * time.Millisecond

// MappingSchemaVersionV1 is the only mapping-file schema this build accepts.
// Unknown versions are rejected rather than guessed at.
const MappingSchemaVersionV1 = "1"

type CommandName string

const (
	CommandInit     CommandName = "init"
	CommandPush     CommandName = "push"
	CommandPull     CommandName = "pull"
	CommandMap      CommandName = "map"
	CommandStatus   CommandName = "status"
	CommandValidate CommandName = "validate"
	CommandWatch    CommandName = "watch"
)

type LockRequirement string

const (
	LockRequirementNone      LockRequirement = "none"
	LockRequirementExclusive LockRequirement = "exclusive"
)

// CommandLockPolicy freezes lock requirements per command. Anything that
// mutates the mapping file or local documents takes the exclusive lock.
var CommandLockPolicy = map[CommandName]LockRequirement{
	CommandInit:     LockRequirementExclusive,
	CommandPush:     LockRequirementExclusive,
	CommandPull:     LockRequirementExclusive,
	CommandMap:      LockRequirementExclusive,
	CommandWatch:    LockRequirementExclusive,
	CommandStatus:   LockRequirementNone,
	CommandValidate: LockRequirementNone,
}

func RequiresLock(command CommandName) bool {
	return CommandLockPolicy[command] == LockRequirementExclusive
}
