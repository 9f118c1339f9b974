package resource

import "strings"

func methods(calls []string) []string {
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i], _, _ = strings.Cut(call, "(")
	}
	return out
}
