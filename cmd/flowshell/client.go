// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"grimm.is/flowshell/internal/errors"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// sendBurst asks the shell at base to inject a traffic burst. An empty amount
// lets the server apply its default.
func sendBurst(base, amount string) error {
	form := url.Values{}
	if amount != "" {
		form.Set("amount", amount)
	}
	req, err := newRequest(base, "/simulate_burst", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(req)
}

// sendReplay uploads a capture file to the shell at base.
func sendReplay(base, path string, dpid uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "open capture")
	}
	defer f.Close()

	req, err := newRequest(base, "/replay?dpid="+strconv.FormatUint(dpid, 10), f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/vnd.tcpdump.pcap")
	return do(req)
}

func newRequest(base, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "build request")
	}
	return req, nil
}

// do sends req and copies the response body to stdout.
func do(req *http.Request) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "failed to contact server")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf(errors.KindUnavailable, "server error: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}
