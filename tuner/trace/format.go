package trace

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimeLayout is the wall-clock format of the start/end lines.
const TimeLayout = "2006-01-02 15:04:05"

// rewardLine matches "reward : <float> [<size>, <size>, ...]". The float may
// be in exponent form, as written by older tuners for very small rewards.
var rewardLine = regexp.MustCompile(`^reward : ([-+\d.eE]+) \[(\d+(?:, \d+)*)\]$`)

// LineFormatter writes only the entry message, one line per entry, so the
// round log keeps its fixed layout regardless of logrus fields or levels.
type LineFormatter struct{}

// Format implements logrus.Formatter.
func (LineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

// Writer appends round blocks to a round log.
type Writer struct {
	log *logrus.Logger
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(LineFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return &Writer{log: l}
}

// Write emits one round as a single entry, so concurrent writers never
// interleave lines of different rounds.
func (w *Writer) Write(rec RoundRecord) {
	w.log.Info(FormatBlock(rec))
}

// FormatBlock renders the start/run/end lines followed by the reward line
// (or a noop line for degenerate rounds), without a trailing newline.
func FormatBlock(rec RoundRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "start time : %s\n", rec.Start.Format(TimeLayout))
	fmt.Fprintf(&b, "run time : %.2f s\n", rec.Elapsed().Seconds())
	fmt.Fprintf(&b, "end time : %s\n", rec.End.Format(TimeLayout))
	if rec.Outcome == OutcomeNoOp {
		b.WriteString("noop : " + FormatArm(rec.Arm))
	} else {
		b.WriteString(FormatRewardLine(rec.Reward, rec.Arm))
	}
	return b.String()
}

// FormatRewardLine renders "reward : <float> [<sizes>]". The reward is
// printed in plain decimal notation so the fixed pattern always matches.
func FormatRewardLine(reward float64, arm []int) string {
	return "reward : " + strconv.FormatFloat(reward, 'f', -1, 64) + " " + FormatArm(arm)
}

// FormatArm renders sizes as "[a, b, ...]".
func FormatArm(arm []int) string {
	parts := make([]string, len(arm))
	for i, v := range arm {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// RewardPoint is one parsed reward line.
type RewardPoint struct {
	Reward float64
	Arm    []int
}

// Parse reads every reward line from a round log, skipping all other lines.
func Parse(r io.Reader) ([]RewardPoint, error) {
	var out []RewardPoint
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		m := rewardLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		reward, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad reward %q: %w", line, m[1], err)
		}
		fields := strings.Split(m[2], ", ")
		arm := make([]int, len(fields))
		for i, f := range fields {
			if arm[i], err = strconv.Atoi(f); err != nil {
				return nil, fmt.Errorf("line %d: bad size %q: %w", line, f, err)
			}
		}
		out = append(out, RewardPoint{Reward: reward, Arm: arm})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
