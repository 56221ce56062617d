package batch

import (
	"fmt"
	"strings"
)

// FileOutcome describes the result of compressing a single document.
type FileOutcome struct {
	FileName       string
	Success        bool
	OriginalSizeMB float64
	FinalSizeMB    *float64 // nil if no output was ever produced
	Err            string
}

// Summary is the ordered list of per-file outcomes for a batch run.
// All aggregates are derived from the outcome list, never stored.
type Summary struct {
	InputDir  string
	OutputDir string
	Outcomes  []FileOutcome
}

// OK reports whether every file in the batch succeeded.
func (s *Summary) OK() bool {
	return len(s.Outcomes) > 0 && s.FailedCount() == 0
}

// SucceededCount returns the number of files that met the target.
func (s *Summary) SucceededCount() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// FailedCount returns the number of files that failed.
func (s *Summary) FailedCount() int {
	return len(s.Outcomes) - s.SucceededCount()
}

// TotalOriginalMB returns the summed original size of successful files.
func (s *Summary) TotalOriginalMB() float64 {
	var total float64
	for _, o := range s.Outcomes {
		if o.Success {
			total += o.OriginalSizeMB
		}
	}
	return total
}

// TotalCompressedMB returns the summed final size of successful files.
func (s *Summary) TotalCompressedMB() float64 {
	var total float64
	for _, o := range s.Outcomes {
		if o.Success && o.FinalSizeMB != nil {
			total += *o.FinalSizeMB
		}
	}
	return total
}

// TotalSavedMB returns the space saved across successful files.
func (s *Summary) TotalSavedMB() float64 {
	return s.TotalOriginalMB() - s.TotalCompressedMB()
}

// Render returns a formatted report of the batch run.
func (s *Summary) Render() string {
	var b strings.Builder
	line := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "%s\nBATCH PROCESSING SUMMARY\n%s\n\n", line, line)
	fmt.Fprintf(&b, "Total files:     %d\n", len(s.Outcomes))
	fmt.Fprintf(&b, "Successful:      %d\n", s.SucceededCount())
	fmt.Fprintf(&b, "Failed:          %d\n", s.FailedCount())

	if s.SucceededCount() > 0 {
		original := s.TotalOriginalMB()
		compressed := s.TotalCompressedMB()
		saved := s.TotalSavedMB()

		fmt.Fprintf(&b, "\nCompression Results:\n")
		fmt.Fprintf(&b, "  Original total:    %.2f MB\n", original)
		fmt.Fprintf(&b, "  Compressed total:  %.2f MB\n", compressed)
		if original > 0 {
			fmt.Fprintf(&b, "  Space saved:       %.2f MB (%.1f%%)\n", saved, saved/original*100)
		}

		fmt.Fprintf(&b, "\nSuccessful files:\n")
		for _, o := range s.Outcomes {
			if !o.Success {
				continue
			}
			final := o.OriginalSizeMB
			if o.FinalSizeMB != nil {
				final = *o.FinalSizeMB
			}
			fmt.Fprintf(&b, "  + %s\n    %.2f MB -> %.2f MB (saved %.2f MB)\n",
				o.FileName, o.OriginalSizeMB, final, o.OriginalSizeMB-final)
		}
	}

	if s.FailedCount() > 0 {
		fmt.Fprintf(&b, "\nFailed files:\n")
		for _, o := range s.Outcomes {
			if o.Success {
				continue
			}
			if o.Err != "" {
				fmt.Fprintf(&b, "  - %s - %s\n", o.FileName, o.Err)
			} else if o.FinalSizeMB != nil {
				fmt.Fprintf(&b, "  - %s - target not reached, closest: %.2f MB\n", o.FileName, *o.FinalSizeMB)
			} else {
				fmt.Fprintf(&b, "  - %s\n", o.FileName)
			}
		}
	}

	fmt.Fprintf(&b, "\n%s\nCompressed files saved to: %s\n%s\n", line, s.OutputDir, line)
	return b.String()
}
