package iammeter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	metering "meter-collector/internal/metering/domain"
)

const (
	// DefaultBaseURL is the vendor meter data endpoint.
	DefaultBaseURL = "https://www.iammeter.com/api/v1/site/meterdata2/"

	// DefaultTimeout bounds one vendor request.
	DefaultTimeout = 10 * time.Second

	phaseRowCount   = 3
	phaseFieldCount = 6
)

// Client fetches meter samples from the vendor REST API.
type Client struct {
	http     *resty.Client
	token    string
	location *time.Location
}

// Option configures the client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

// WithLocation sets the location used to interpret vendor local timestamps.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// NewClient constructs a vendor client.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("iammeter: empty base url")
	}
	if token == "" {
		return nil, errors.New("iammeter: empty token")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetHeader("Accept", "application/json"),
		token:    token,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type meterDataResponse struct {
	Successful bool       `json:"successful"`
	Message    string     `json:"message"`
	Data       *meterData `json:"data"`
}

type meterData struct {
	LocalTime string       `json:"localTime"`
	GMTTime   string       `json:"gmtTime"`
	Values    [][]*float64 `json:"values"`
}

// Fetch performs one request for a meter. Every failure is a *metering.FetchError.
func (c *Client) Fetch(ctx context.Context, serialNumber string) (metering.RawMeterSample, error) {
	if serialNumber == "" {
		return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "empty serial number")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("serial", serialNumber).
		SetQueryParam("token", c.token).
		Get("/{serial}")
	if err != nil {
		return metering.RawMeterSample{}, metering.NewTransportError(serialNumber, err)
	}
	if !resp.IsSuccess() {
		return metering.RawMeterSample{}, metering.NewTransportError(serialNumber, &statusError{code: resp.StatusCode()})
	}

	var payload meterDataResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "decode payload: %v", err)
	}
	if !payload.Successful {
		return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "unsuccessful response: %s", payload.Message)
	}
	if payload.Data == nil {
		return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "missing data")
	}
	return parseSample(serialNumber, *payload.Data, c.location)
}

// parseSample maps value rows to phases by position: row 0 is A, 1 is B, 2 is C.
func parseSample(serialNumber string, data meterData, loc *time.Location) (metering.RawMeterSample, error) {
	if len(data.Values) != phaseRowCount {
		return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "expected %d value rows, got %d", phaseRowCount, len(data.Values))
	}
	ts, err := time.ParseInLocation(metering.LocalTimeLayout, data.LocalTime, loc)
	if err != nil {
		return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "invalid localTime %q", data.LocalTime)
	}

	sample := metering.RawMeterSample{
		SerialNumber: serialNumber,
		LocalTime:    data.LocalTime,
		GMTTime:      data.GMTTime,
		Timestamp:    ts,
	}
	for i, row := range data.Values {
		if len(row) != phaseFieldCount {
			return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "row %d: expected %d fields, got %d", i, phaseFieldCount, len(row))
		}
		for j, value := range row {
			if value == nil {
				return metering.RawMeterSample{}, metering.NewProtocolError(serialNumber, "row %d field %d: null value", i, j)
			}
		}
		sample.Phases[i] = metering.PhaseReading{
			Phase:           metering.Phases[i],
			Voltage:         *row[0],
			Current:         *row[1],
			ActivePower:     *row[2],
			PowerFactor:     *row[3],
			GridConsumption: *row[4],
			ExportedPower:   *row[5],
		}
	}
	return sample, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("iammeter: http %d", e.code)
}
