// FILE: src/internal/server/parse.go
package server

import (
	"time"

	"logrelay/src/internal/core"
	"logrelay/src/internal/ingest"

	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

// parseBatch decodes a submitted ingestion payload without reflection.
// Per-record field problems are left for the validator; only a payload
// that is not a well-formed batch is rejected here.
func parseBatch(body []byte) (*ingest.Batch, core.IngestOptions, *core.Error) {
	parser := parserPool.Get()
	defer parserPool.Put(parser)

	root, err := parser.ParseBytes(body)
	if err != nil {
		return nil, core.IngestOptions{},
			core.NewError(core.CodeInvalidRequest, "malformed JSON: %v", err)
	}

	recordsVal := root.Get("records")
	if recordsVal == nil || recordsVal.Type() != fastjson.TypeArray {
		return nil, core.IngestOptions{},
			core.NewError(core.CodeInvalidRequest, "payload requires a records array")
	}

	batch := &ingest.Batch{
		Source: stringField(root, "source"),
	}

	recordVals, _ := recordsVal.Array()
	batch.Records = make([]core.LogRecord, 0, len(recordVals))
	for _, v := range recordVals {
		batch.Records = append(batch.Records, parseRecord(v))
	}

	opts := core.IngestOptions{}
	if optsVal := root.Get("options"); optsVal != nil {
		opts.ProcessAsync = optsVal.GetBool("process_async")
		opts.Redact = optsVal.GetBool("redact")
		opts.Environment = stringField(optsVal, "environment")
		opts.Region = stringField(optsVal, "region")
	}

	return batch, opts, nil
}

func parseRecord(v *fastjson.Value) core.LogRecord {
	rec := core.LogRecord{
		ID:            stringField(v, "id"),
		Level:         core.Level(stringField(v, "level")),
		Domain:        core.Domain(stringField(v, "domain")),
		ServiceName:   stringField(v, "service_name"),
		Message:       stringField(v, "message"),
		CorrelationID: stringField(v, "correlation_id"),
		RawSize:       int64(len(v.MarshalTo(nil))),
	}

	if ts := stringField(v, "timestamp"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = parsed
		}
		// Unparseable timestamps stay zero and fail validation
	}

	if ctxVal := v.Get("context"); ctxVal != nil && ctxVal.Type() == fastjson.TypeObject {
		obj, _ := ctxVal.Object()
		rec.Context = make(map[string]string, obj.Len())
		obj.Visit(func(key []byte, value *fastjson.Value) {
			if value.Type() == fastjson.TypeString {
				rec.Context[string(key)] = string(value.GetStringBytes())
			} else {
				rec.Context[string(key)] = value.String()
			}
		})
	}

	return rec
}

func stringField(v *fastjson.Value, key string) string {
	return string(v.GetStringBytes(key))
}
