package domain

// Wire field keys used on push requests and responses.
const (
	KeyProcess         = "process"
	KeyData            = "data"
	KeyTarget          = "target"
	KeyType            = "type"
	KeyModule          = "module"
	KeyScheduler       = "scheduler"
	KeyAuthority       = "authority"
	KeyRandomSeed      = "random-seed"
	KeyDataProtocol    = "data-protocol"
	KeyVariant         = "variant"
	KeySigningFormat   = "signing-format"
	KeyDevice          = "device"
	KeySchedulerDevice = "scheduler-device"
	KeyPushDevice      = "push-device"
	KeyExecutionDevice = "execution-device"
	KeyReady           = "ready"
)

// Fixed protocol values for the mainnet push flow.
const (
	TypeProcess      = "Process"
	TypeMessage      = "Message"
	DataProtocolAO   = "ao"
	VariantMainnet   = "ao.N.1"
	SigningFormatANS = "ANS-104"
	DeviceProcess    = "process@1.0"
	DeviceScheduler  = "scheduler@1.0"
	DevicePush       = "push@1.0"
	DeviceLua        = "lua@5.3a"

	// DefaultAuthority is appended to the resolved operator in the authority field.
	DefaultAuthority = "fcoN_xJeisVsPXA-trzVAuIiqO3ydLQxM-L4XbrQKzY"

	// DefaultModule is the Lua module spawned when the caller names none.
	DefaultModule = "JArYBF-D8q2OmZ4Mok00sD2Y_6SYEQ7Hjx-6VZ_jl3g"
)

// Tag names and values.
const (
	TagAction     = "Action"
	ActionEval    = "Eval"
	TagAppName    = "App-Name"
	TagAppVersion = "App-Version"
	AppName       = "aoide"
)

// VersionProbeCode is evaluated once a new process is live. It is a no-op
// that only proves the process answers.
const VersionProbeCode = "require('.process')._version"
