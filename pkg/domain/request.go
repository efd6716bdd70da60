package domain

import (
	"fmt"
	"strings"
)

// SpawnRequest is what a caller asks for when creating a new process.
type SpawnRequest struct {
	// Module is the module reference to run. Empty means DefaultModule.
	Module string `json:"module,omitempty"`
	Tags   Tags   `json:"tags,omitempty"`
	Data   string `json:"data,omitempty"`
}

// Validate checks the request at the boundary.
func (r SpawnRequest) Validate() error {
	return r.Tags.Validate()
}

// SpawnMeta carries the values the coordinator resolves before submitting.
type SpawnMeta struct {
	Authority  string
	Scheduler  string
	RandomSeed string
	CommonTags Tags
}

// Fields builds the flattened wire map for a spawn. Order of precedence,
// lowest first: fixed metadata, common tags, caller tags, payload.
func (r SpawnRequest) Fields(meta SpawnMeta) map[string]string {
	module := r.Module
	if module == "" {
		module = DefaultModule
	}
	fixed := map[string]string{
		KeyType:            TypeProcess,
		KeyDevice:          DeviceProcess,
		KeySchedulerDevice: DeviceScheduler,
		KeyPushDevice:      DevicePush,
		KeyExecutionDevice: DeviceLua,
		KeyDataProtocol:    DataProtocolAO,
		KeyVariant:         VariantMainnet,
		KeySigningFormat:   SigningFormatANS,
		KeyModule:          module,
		KeyAuthority:       meta.Authority,
		KeyScheduler:       meta.Scheduler,
	}
	if meta.RandomSeed != "" {
		fixed[KeyRandomSeed] = meta.RandomSeed
	}

	tags := make(Tags, 0, len(meta.CommonTags)+len(r.Tags))
	tags = append(tags, meta.CommonTags...)
	tags = append(tags, r.Tags...)

	fields := tags.Flatten(fixed)
	if r.Data != "" {
		fields[KeyData] = r.Data
	}
	return fields
}

// WriteRequest targets an existing process.
type WriteRequest struct {
	Process ProcessRef `json:"process"`
	Tags    Tags       `json:"tags,omitempty"`
	Data    string     `json:"data,omitempty"`
}

// Validate checks the request at the boundary.
func (r WriteRequest) Validate() error {
	if strings.TrimSpace(string(r.Process)) == "" {
		return fmt.Errorf("%w: process reference required", ErrInvalidRequest)
	}
	return r.Tags.Validate()
}

// Fields builds the flattened wire map for a message.
func (r WriteRequest) Fields() map[string]string {
	fixed := map[string]string{
		KeyType:          TypeMessage,
		KeyDataProtocol:  DataProtocolAO,
		KeyVariant:       VariantMainnet,
		KeySigningFormat: SigningFormatANS,
		KeyTarget:        string(r.Process),
	}
	fields := r.Tags.Flatten(fixed)
	if r.Data != "" {
		fields[KeyData] = r.Data
	}
	return fields
}

// EvalRequest builds the write that evaluates code inside a process.
func EvalRequest(process ProcessRef, code string) WriteRequest {
	return WriteRequest{
		Process: process,
		Tags:    Tags{{Name: TagAction, Value: ActionEval}},
		Data:    code,
	}
}
