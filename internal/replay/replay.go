// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package replay feeds captured frames into the controller as packet-ins.
// Both classic pcap and pcapng captures are accepted.
package replay

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/pcapgo"

	"grimm.is/flowshell/internal/errors"
	"grimm.is/flowshell/internal/logging"
)

// pcapng section header block type.
const ngMagic = 0x0A0D0D0A

// Handler consumes one frame and reports whether it was counted.
type Handler func(frame []byte) bool

// Stats summarizes a replay.
type Stats struct {
	Frames  int `json:"frames"`
	Counted int `json:"counted"`
	Skipped int `json:"skipped"`
}

type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// Run reads every frame from r and hands it to h. It stops at end of capture,
// on a read error, or when ctx is done.
func Run(ctx context.Context, r io.Reader, h Handler, logger *logging.Logger) (Stats, error) {
	if logger == nil {
		logger = logging.WithComponent("replay")
	}

	src, err := open(r)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		data, _, err := src.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, errors.Wrapf(err, errors.KindValidation, "read frame %d", stats.Frames+1)
		}
		stats.Frames++
		if h(data) {
			stats.Counted++
		} else {
			stats.Skipped++
		}
	}

	logger.Info("Capture replayed", "frames", stats.Frames, "counted", stats.Counted, "skipped", stats.Skipped)
	return stats, nil
}

func open(r io.Reader) (packetSource, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "capture too short")
	}

	if binary.LittleEndian.Uint32(head) == ngMagic {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindValidation, "invalid pcapng capture")
		}
		return ng, nil
	}

	pr, err := pcapgo.NewReader(br)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "invalid pcap capture")
	}
	return pr, nil
}
