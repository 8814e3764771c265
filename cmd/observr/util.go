package main

import (
	"encoding/json"
	"fmt"

	"github.com/loykin/observr/internal/changelog"
	"github.com/loykin/observr/internal/metrics"
	"github.com/loykin/observr/internal/service"
)

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func validEventType(s string) bool {
	for _, t := range changelog.EventTypes {
		if s == t {
			return true
		}
	}
	return false
}

// servicePIDs adapts the service manager's pid scan for the resource
// collector.
func servicePIDs(services *service.Manager) metrics.PIDFunc {
	return func() map[string]int32 {
		out := make(map[string]int32)
		for _, svc := range services.All() {
			pid, err := services.PID(svc.Name)
			if err != nil {
				continue
			}
			out[svc.Name] = pid
		}
		return out
	}
}
