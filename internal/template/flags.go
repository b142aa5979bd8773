package template

import "strings"

// Reserved double-underscore flag keys. Their values are resolved like any
// other template, but they instruct the dispatcher (auth mode, body mode)
// rather than becoming request content, so the dispatcher strips them from
// everything it forwards.
const (
	FlagSendBody        = "__send_body__"
	FlagAuthType        = "__auth_type__"
	FlagAuthUsername    = "__auth_username__"
	FlagAuthPassword    = "__auth_password__"
	FlagAuthToken       = "__auth_token__"
	FlagAuthHeaderName  = "__auth_header_name__"
	FlagAuthHeaderValue = "__auth_header_value__"
	FlagBodyType        = "__body_type__"
)

// IsReservedFlag reports whether a key is a reserved dispatcher flag.
func IsReservedFlag(key string) bool {
	return strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__")
}

// StripFlags returns a copy of m without reserved flag keys. A nil map stays
// nil.
func StripFlags(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if IsReservedFlag(k) {
			continue
		}
		out[k] = v
	}
	return out
}
