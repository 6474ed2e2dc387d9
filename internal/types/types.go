package types

// InvocationEvent is one request to run a catalog operation, as delivered to
// the Lambda handler or replayed by the debug runner.
type InvocationEvent struct {
	Operation           string            `json:"operation"`
	Parameters          map[string]any    `json:"parameters,omitempty"`
	EncryptedParameters map[string]string `json:"encryptedParameters,omitempty"`
	Arguments           []any             `json:"arguments,omitempty"`
	Input               any               `json:"input,omitempty"`
	Force               bool              `json:"force,omitempty"`
	Select              string            `json:"select,omitempty"`
}
