// Package loadgen drives the compression service purely through its wire
// protocol: scripted request/response cases run by any number of concurrent
// clients, each over one persistent connection.
package loadgen

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/strydlabs/stryd/internal/protocol"
)

const responseTimeout = 10 * time.Second

// Results tallies case outcomes for one or more clients.
type Results struct {
	Count  int
	Passed int
	Failed int
}

func (r *Results) add(other Results) {
	r.Count += other.Count
	r.Passed += other.Passed
	r.Failed += other.Failed
}

type Client struct {
	addr string
	log  zerolog.Logger
}

func NewClient(addr string, logger zerolog.Logger) *Client {
	return &Client{addr: addr, log: logger}
}

// Run dials the service and plays every case in order, comparing responses
// byte for byte where the case pins one down.
func (c *Client) Run(id int, cases []Case) (Results, error) {
	var results Results

	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return results, err
	}
	defer conn.Close()

	buf := make([]byte, protocol.MaxMessagePadded)
	for _, tc := range cases {
		results.Count++

		if _, err := conn.Write(tc.Query); err != nil {
			results.Failed++
			return results, err
		}

		_ = conn.SetReadDeadline(time.Now().Add(responseTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			results.Failed++
			return results, err
		}

		if tc.Expected == nil {
			results.Passed++
			continue
		}
		if bytes.Equal(buf[:n], tc.Expected) {
			results.Passed++
		} else {
			results.Failed++
			c.log.Warn().Int("client", id).Str("case", tc.Name).
				Hex("got", buf[:n]).Hex("want", tc.Expected).
				Msg("response mismatch")
		}
	}

	return results, nil
}

// RunClients runs numClients concurrent clients against addr and merges their
// tallies. Individual client errors are logged, not fatal for the run.
func RunClients(addr string, numClients int, cases []Case, logger zerolog.Logger) Results {
	var (
		mu    sync.Mutex
		total Results
		wg    sync.WaitGroup
	)

	for i := 1; i <= numClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			client := NewClient(addr, logger)
			results, err := client.Run(id, cases)
			if err != nil {
				logger.Warn().Int("client", id).Err(err).Msg("client run ended early")
			}
			mu.Lock()
			total.add(results)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	return total
}
