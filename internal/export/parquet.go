// Package export writes finalized motion data in analysis-friendly formats.
package export

import (
	"fmt"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/ayusman/handmocap/internal/motion"
)

// ChannelRecord is one channel value of one sample, the long form of the
// motion table.
type ChannelRecord struct {
	Take      string  `parquet:"name=take, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sample    int64   `parquet:"name=sample, type=INT64"`
	ElapsedUs int64   `parquet:"name=elapsed_us, type=INT64"`
	Joint     string  `parquet:"name=joint, type=BYTE_ARRAY, convertedtype=UTF8"`
	Channel   string  `parquet:"name=channel, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value     float64 `parquet:"name=value, type=DOUBLE"`
}

// Records flattens d into one record per sample and column, row by row.
func Records(take string, d *motion.Data) []ChannelRecord {
	joints := make([]string, len(d.Columns))
	channels := make([]string, len(d.Columns))
	for i, label := range d.Columns {
		joints[i], channels[i] = splitLabel(label)
	}

	records := make([]ChannelRecord, 0, d.Len()*len(d.Columns))
	for row, values := range d.Values {
		elapsed := d.Index[row].Microseconds()
		for col, v := range values {
			records = append(records, ChannelRecord{
				Take:      take,
				Sample:    int64(row),
				ElapsedUs: elapsed,
				Joint:     joints[col],
				Channel:   channels[col],
				Value:     v,
			})
		}
	}
	return records
}

// splitLabel splits "<joint>_<channel>" at the last underscore, since joint
// names such as RightHandIndex4_End contain one themselves.
func splitLabel(label string) (joint, channel string) {
	i := strings.LastIndex(label, "_")
	if i < 0 {
		return label, ""
	}
	return label[:i], label[i+1:]
}

// WriteParquet writes the long form of d to path and returns the number of
// records written.
func WriteParquet(path, take string, d *motion.Data) (int, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(ChannelRecord), 4)
	if err != nil {
		return 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	records := Records(take, d)
	for _, record := range records {
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return 0, fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return len(records), nil
}
