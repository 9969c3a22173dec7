package aviapages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// CalcRequest is the flight calculator request body.
type CalcRequest struct {
	DepartureAirport string   `json:"departure_airport"`
	ArrivalAirport   string   `json:"arrival_airport"`
	Aircraft         string   `json:"aircraft"`
	Pax              int      `json:"pax,omitempty"` // 0 means not specified.
	AirwayTime       bool     `json:"airway_time"`
	AirwayDistance   bool     `json:"airway_distance"`
	AvoidCountries   []string `json:"avoid_countries,omitempty"`
	AvoidFIRs        []string `json:"avoid_firs,omitempty"`
}

// CalcResult is the part of the calculator response the bot uses.
type CalcResult struct {
	AirwayMinutes  float64  `json:"airway_minutes"`
	AirwayDistance float64  `json:"airway_distance_km"`
	Warnings       []string `json:"warnings,omitempty"`
}

// AirwayTime renders the flight time as HH:MM. Hours are not wrapped at 24.
func (r CalcResult) AirwayTime() string {
	total := int(r.AirwayMinutes + 0.5)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// FlexMessage decodes either a bare string or an object with a "message"
// field; the calculator uses both shapes for warnings and errors.
type FlexMessage string

func (m *FlexMessage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = FlexMessage(s)
		return nil
	}

	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*m = FlexMessage(obj.Message)
	return nil
}

type calcResponse struct {
	Time struct {
		Airway *float64 `json:"airway"`
	} `json:"time"`
	Distance struct {
		Airway *float64 `json:"airway"`
	} `json:"distance"`
	Warnings []FlexMessage `json:"warnings"`
	Errors   []FlexMessage `json:"errors"`
}

// Calculate asks the flight calculator for airway time and distance.
// AirwayTime and AirwayDistance are always requested.
func (c *Client) Calculate(ctx context.Context, req CalcRequest) (CalcResult, error) {
	req.AirwayTime = true
	req.AirwayDistance = true

	body, err := json.Marshal(req)
	if err != nil {
		return CalcResult{}, fmt.Errorf("encode calculator request: %w", err)
	}

	u := strings.TrimRight(c.cfg.CalculatorURL, "/") + "/flight_calculator/"
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return CalcResult{}, fmt.Errorf("build request: %w", err)
	}
	hreq.Header = c.headers.Clone()

	resp, err := c.http.Do(hreq)
	if err != nil {
		return CalcResult{}, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CalcResult{}, &ConnectionError{Err: fmt.Errorf("calculator status %d", resp.StatusCode)}
	}

	var cr calcResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return CalcResult{}, fmt.Errorf("decode calculator response: %w", err)
	}

	if len(cr.Errors) > 0 {
		msgs := make([]string, 0, len(cr.Errors))
		for _, e := range cr.Errors {
			msgs = append(msgs, string(e))
		}
		return CalcResult{}, &CalcError{Messages: msgs}
	}

	result := CalcResult{}
	if cr.Time.Airway != nil {
		result.AirwayMinutes = *cr.Time.Airway
	}
	if cr.Distance.Airway != nil {
		result.AirwayDistance = *cr.Distance.Airway
	}
	for _, w := range cr.Warnings {
		result.Warnings = append(result.Warnings, string(w))
	}

	c.logger.Debug("flight calculated",
		slog.String("departure", req.DepartureAirport),
		slog.String("arrival", req.ArrivalAirport),
		slog.String("aircraft", req.Aircraft),
		slog.Float64("minutes", result.AirwayMinutes))

	return result, nil
}
