package storage

import (
	"bufio"
	"bytes"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// maxLineBytes bounds one serialized sample. A deep order book snapshot can
// outgrow the default scanner buffer.
const maxLineBytes = 16 << 20

// EncodeSeries serializes one day of one series as gzip compressed NDJSON,
// one sample per line in append order.
func EncodeSeries(samples []Sample) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	for i := range samples {
		line, err := jsoniter.Marshal(&samples[i])
		if err != nil {
			return nil, errors.Wrap(err, "sample marshal")
		}
		line = append(line, '\n')
		if _, err = gw.Write(line); err != nil {
			return nil, errors.Wrap(err, "sample gzip write")
		}
	}
	if err := gw.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}

// DecodeSeries is the inverse of EncodeSeries. Used to restore checkpoints.
func DecodeSeries(data []byte) ([]Sample, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "gzip open")
	}
	defer gr.Close()

	var samples []Sample
	sc := bufio.NewScanner(gr)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var s Sample
		if err = jsoniter.Unmarshal(line, &s); err != nil {
			return nil, errors.Wrap(err, "sample decode")
		}
		samples = append(samples, s)
	}
	if err = sc.Err(); err != nil {
		return nil, errors.Wrap(err, "series read")
	}
	return samples, nil
}
