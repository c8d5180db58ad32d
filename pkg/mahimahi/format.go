// Text form of mahimahi traces: one decimal millisecond timestamp per line
package mahimahi

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads a mahimahi trace. Blank lines are skipped; any other line must
// hold a single unsigned decimal timestamp.
func Parse(r io.Reader) ([]uint64, error) {
	var out []uint64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		ts, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q", line, text)
		}
		out = append(out, ts)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	return out, nil
}

// Write writes timestamps separated by newlines, without a trailing newline.
func Write(w io.Writer, timestamps []uint64) error {
	bw := bufio.NewWriter(w)
	for i, ts := range timestamps {
		if i > 0 {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(strconv.FormatUint(ts, 10)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Format returns the text Write would produce.
func Format(timestamps []uint64) string {
	var sb strings.Builder
	_ = Write(&sb, timestamps)
	return sb.String()
}
