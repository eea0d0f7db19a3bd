// Package wol dispatches wake requests to the external Wake-on-LAN
// proxy service.
package wol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"wolweb/internal/store"
)

// DispatchTimeout bounds a single wake attempt end to end.
const DispatchTimeout = 5 * time.Second

// Outcome classifies a wake attempt.
type Outcome int

const (
	// Sent means the proxy answered HTTP 200.
	Sent Outcome = iota
	// ProxyRejected means the proxy answered with any other status.
	ProxyRejected
	// TransportFailure means the request never got an HTTP response.
	TransportFailure
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case ProxyRejected:
		return "proxy_rejected"
	case TransportFailure:
		return "transport_failure"
	}
	return "unknown"
}

// HTTPClient allows substituting the transport in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher sends wake requests to a proxy endpoint. It is stateless:
// each call is a single attempt with no retry and no idempotence key.
type Dispatcher struct {
	client HTTPClient
	log    zerolog.Logger
}

// New returns a dispatcher with the default bounded-timeout client.
func New(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		client: &http.Client{Timeout: DispatchTimeout},
		log:    log,
	}
}

// NewWithClient returns a dispatcher using a caller-supplied transport.
func NewWithClient(log zerolog.Logger, client HTTPClient) *Dispatcher {
	return &Dispatcher{client: client, log: log}
}

type wireHost struct {
	MACAddress string `json:"mac_address"`
	IPAddress  string `json:"ip_address"`
	Port       int    `json:"port"`
	Interface  string `json:"interface"`
}

type wireKey struct {
	Key string `json:"key"`
}

type wireRequest struct {
	Host wireHost `json:"host"`
	Key  wireKey  `json:"key"`
}

// Dispatch posts the host descriptor and shared key to
// {endpoint}/wol and classifies the result. The returned error carries
// detail for logging; the Outcome is always meaningful.
func (d *Dispatcher) Dispatch(ctx context.Context, host store.Host, apiKey, endpoint string) (Outcome, error) {
	body, err := json.Marshal(wireRequest{
		Host: wireHost{
			MACAddress: host.MACAddress,
			IPAddress:  host.IPAddress,
			Port:       host.Port,
			Interface:  host.Interface,
		},
		Key: wireKey{Key: apiKey},
	})
	if err != nil {
		return TransportFailure, err
	}

	ctx, cancel := context.WithTimeout(ctx, DispatchTimeout)
	defer cancel()

	url := endpoint + "/wol"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return TransportFailure, err
	}
	req.Header.Set("Content-Type", "application/json")

	d.log.Info().Str("mac", host.MACAddress).Str("url", url).Msg("dispatching wake request")

	res, err := d.client.Do(req)
	if err != nil {
		return TransportFailure, fmt.Errorf("calling wake proxy: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return ProxyRejected, fmt.Errorf("wake proxy returned %d", res.StatusCode)
	}
	return Sent, nil
}
