// services/stringlist.go
package services

import (
	"encoding/json"
	"fmt"
)

// StringList accepts either a single JSON string or an array of strings and
// normalizes to an ordered slice on ingress. Clients have historically sent
// brand and domain mentions in both shapes.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*s = nil
		return nil
	}

	switch data[0] {
	case '"':
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return fmt.Errorf("failed to parse string value: %w", err)
		}
		if single == "" {
			*s = nil
		} else {
			*s = StringList{single}
		}
		return nil
	case 'n':
		*s = nil
		return nil
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("failed to parse string array: %w", err)
		}
		*s = StringList(list)
		return nil
	}
}
