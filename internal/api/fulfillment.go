package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/hiroag/irhub-core/internal/queue"
	"github.com/hiroag/irhub-core/internal/registry"
)

// Intent names on the fulfillment wire.
const (
	IntentSync    = "action.devices.SYNC"
	IntentQuery   = "action.devices.QUERY"
	IntentExecute = "action.devices.EXECUTE"
)

// intentRequest is the envelope of a fulfillment request.
type intentRequest struct {
	RequestID string        `json:"requestId"`
	Inputs    []intentInput `json:"inputs"`
}

// intentInput is one intent within a fulfillment request.
type intentInput struct {
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// syncDeviceName is the name block of a SYNC device entry.
type syncDeviceName struct {
	DefaultNames []string `json:"defaultNames"`
	Name         string   `json:"name"`
	Nicknames    []string `json:"nicknames"`
}

// syncDevice is one device entry in a SYNC response.
type syncDevice struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Name            syncDeviceName    `json:"name"`
	DeviceInfo      map[string]string `json:"deviceInfo"`
	Traits          []string          `json:"traits"`
	Attributes      map[string]any    `json:"attributes,omitempty"`
	WillReportState bool              `json:"willReportState"`
}

// queryPayload is the payload of a QUERY intent.
type queryPayload struct {
	Devices []struct {
		ID string `json:"id"`
	} `json:"devices"`
}

// executePayload is the payload of an EXECUTE intent.
type executePayload struct {
	Commands []struct {
		Devices []struct {
			ID string `json:"id"`
		} `json:"devices"`
		Execution []struct {
			Command string         `json:"command"`
			Params  map[string]any `json:"params"`
		} `json:"execution"`
	} `json:"commands"`
}

// executeResult is one entry of an EXECUTE response.
type executeResult struct {
	IDs       []string `json:"ids"`
	Status    string   `json:"status"`
	ErrorCode string   `json:"errorCode,omitempty"`
}

// handleFulfillment authenticates the caller and dispatches the first
// intent of the request to the matching handler.
func (s *Server) handleFulfillment(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid fulfillment request")
		return
	}
	if len(req.Inputs) == 0 {
		writeBadRequest(w, "missing inputs")
		return
	}

	input := req.Inputs[0]
	switch input.Intent {
	case IntentSync:
		s.handleSync(w, r, req.RequestID, userID)
	case IntentQuery:
		s.handleQuery(w, r, req.RequestID, input.Payload)
	case IntentExecute:
		s.handleExecute(w, req.RequestID, input.Payload)
	default:
		writeBadRequest(w, "missing intent")
	}
}

// handleSync lists the devices the user may address, group-owned first
// then user-owned, deduplicated by alias ID.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request, requestID, userID string) {
	owned, err := s.devices.ListForUser(r.Context(), userID)
	if err != nil {
		s.logger.Error("sync listing failed", "user_id", userID, "error", err)
		writeInternalError(w, "device listing failed")
		return
	}

	devices := make([]syncDevice, 0, len(owned))
	for _, o := range owned {
		devices = append(devices, buildSyncDevice(o))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requestId": requestID,
		"payload": map[string]any{
			"agentUserId": userID,
			"devices":     devices,
		},
	})
}

// buildSyncDevice maps an owned device onto the SYNC wire shape.
//
// The display name falls back to "manufacturer model" when the canonical
// record has no name, then to the device ID.
func buildSyncDevice(o registry.OwnedDevice) syncDevice {
	d := o.Device

	name := d.Name
	if name == "" {
		if d.Manufacturer != "" && d.Model != "" {
			name = d.Manufacturer + " " + d.Model
		} else {
			name = d.ID
		}
	}

	info := map[string]string{}
	if d.Manufacturer != "" {
		info["manufacturer"] = d.Manufacturer
	}
	if d.Model != "" {
		info["model"] = d.Model
	}

	traits := d.Traits
	if traits == nil {
		traits = []string{}
	}

	return syncDevice{
		ID:   o.ID,
		Type: d.Type,
		Name: syncDeviceName{
			DefaultNames: []string{name},
			Name:         name,
			Nicknames:    []string{o.Name},
		},
		DeviceInfo:      info,
		Traits:          traits,
		Attributes:      d.Attributes,
		WillReportState: d.WillReportState,
	}
}

// handleQuery fans out state reads for the requested devices concurrently
// and returns the per-alias state maps.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request, requestID string, payload json.RawMessage) {
	var q queryPayload
	if err := json.Unmarshal(payload, &q); err != nil {
		writeBadRequest(w, "invalid query payload")
		return
	}

	var mu sync.Mutex
	states := make(map[string]map[string]any, len(q.Devices))

	var wg sync.WaitGroup
	for _, d := range q.Devices {
		wg.Add(1)
		go func(aliasID string) {
			defer wg.Done()
			snapshot, err := s.states.Get(r.Context(), aliasID)
			if err != nil {
				s.logger.Warn("query state read failed", "alias_id", aliasID, "error", err)
				snapshot = map[string]any{}
			}
			mu.Lock()
			states[aliasID] = snapshot
			mu.Unlock()
		}(d.ID)
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, map[string]any{
		"requestId": requestID,
		"payload":   map[string]any{"devices": states},
	})
}

// handleExecute enqueues the command batch for every addressed device and
// replies SUCCESS immediately; execution happens asynchronously and state
// becomes visible through QUERY once the pipeline persists it.
func (s *Server) handleExecute(w http.ResponseWriter, requestID string, payload json.RawMessage) {
	var exec executePayload
	if err := json.Unmarshal(payload, &exec); err != nil {
		writeBadRequest(w, "invalid execute payload")
		return
	}

	var results []executeResult
	for _, c := range exec.Commands {
		commands := make([]queue.Command, 0, len(c.Execution))
		for _, e := range c.Execution {
			commands = append(commands, queue.Command{Command: e.Command, Params: e.Params})
		}

		for _, d := range c.Devices {
			if err := s.queue.Set(d.ID, commands); err != nil {
				s.logger.Error("command enqueue failed", "alias_id", d.ID, "error", err)
				results = append(results, executeResult{
					IDs:       []string{d.ID},
					Status:    "ERROR",
					ErrorCode: "hardError",
				})
				continue
			}
			results = append(results, executeResult{IDs: []string{d.ID}, Status: "SUCCESS"})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"requestId": requestID,
		"payload":   map[string]any{"commands": results},
	})
}
