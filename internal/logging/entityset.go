// ABOUTME: Entity set detection for request logging.
// ABOUTME: Determines which CRM table a Web API request targets based on URL path.

package logging

import "strings"

const apiPrefix = "/api/data/v9.2/"

// EntitySetFromPath returns the entity set named by a Web API path, e.g.
// "/api/data/v9.2/contacts(<id>)" -> "contacts". Non-table paths return "".
func EntitySetFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, apiPrefix)
	if !ok || rest == "" {
		return ""
	}
	if i := strings.IndexAny(rest, "(/?"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "WhoAmI" || strings.HasPrefix(rest, "$") {
		return ""
	}
	return rest
}
