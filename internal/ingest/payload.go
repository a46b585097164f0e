// ABOUTME: JSON payload stored on each e-activity record.
// ABOUTME: Key order and string-typed values are what downstream consumers parse.

package ingest

import "encoding/json"

type activityPayload struct {
	Contact string       `json:"contact"`
	Account string       `json:"account"`
	Data    activityData `json:"data"`
}

type activityData struct {
	Timestamp string `json:"timestamp"`
	Duration  string `json:"duration"`
}

// ActivityPayload renders the ljr_json document for one contact and account.
func ActivityPayload(contactName, accountName string) (string, error) {
	b, err := json.Marshal(activityPayload{
		Contact: contactName,
		Account: accountName,
		Data:    activityData{Timestamp: "880", Duration: "123"},
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
