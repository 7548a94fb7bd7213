package runner

import (
	"io"
	"strconv"

	"github.com/grailbio/base/tsv"
	"github.com/marinebio/edna/edna"
)

// The run report is emitted unconditionally, even when every sample failed:
// an operator reading only the report must be able to tell what happened to
// each sample and which site series were produced or skipped.

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteSampleReport writes one TSV row per sample: its disposition, failure
// reason, warning, and headline stage counts.
func WriteSampleReport(w io.Writer, res *Result) error {
	out := tsv.NewWriter(w)
	out.WriteString("SAMPLE\tSITE\tSTATE\tREADS_IN\tREADS_PASSED\tREADS_CORRECTED\tPATHWAYS\tERROR\tWARNING")
	if err := out.EndLine(); err != nil {
		return err
	}
	for i := range res.Samples {
		sr := &res.Samples[i]
		passed := 0
		for _, qc := range sr.QC {
			if qc.Verdict == edna.QCPass {
				passed++
			}
		}
		out.WriteString(sr.SampleID)
		out.WriteString(sr.Site)
		out.WriteString(sr.State.String())
		out.WriteString(strconv.Itoa(len(sr.QC)))
		out.WriteString(strconv.Itoa(passed))
		out.WriteString(strconv.Itoa(sr.Correction.ReadsChanged))
		n := 0
		if sr.Table != nil {
			n = len(sr.Table.Pathways)
		}
		out.WriteString(strconv.Itoa(n))
		out.WriteString(sr.Err)
		out.WriteString(sr.Warning)
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteAbundanceTable writes the normalized pathway abundances of all
// completed samples as one long-format TSV.
func WriteAbundanceTable(w io.Writer, res *Result) error {
	out := tsv.NewWriter(w)
	out.WriteString("SAMPLE\tSITE\tPATHWAY\tRAW\tNORMALIZED\tCOVERAGE\tLOW_CONFIDENCE\tMETHOD")
	if err := out.EndLine(); err != nil {
		return err
	}
	for i := range res.Samples {
		sr := &res.Samples[i]
		if sr.Table == nil {
			continue
		}
		for _, p := range sr.Table.Pathways {
			out.WriteString(sr.SampleID)
			out.WriteString(sr.Site)
			out.WriteString(p.Pathway)
			out.WriteString(formatFloat(p.Raw))
			out.WriteString(formatFloat(p.Normalized))
			out.WriteString(formatFloat(p.Coverage))
			if p.LowConfidence {
				out.WriteString("yes")
			} else {
				out.WriteString("no")
			}
			out.WriteString(string(sr.Table.Method))
			if err := out.EndLine(); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

// WriteSeriesReport writes the per-(site, pathway) decomposition components
// and anomaly flags, followed by the skipped series and their reasons.
func WriteSeriesReport(w io.Writer, res *Result) error {
	out := tsv.NewWriter(w)
	out.WriteString("SITE\tPATHWAY\tTIME\tOBSERVED\tTREND\tSEASONAL\tRESIDUAL\tANOMALY")
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, s := range res.Series {
		anomalous := map[int]bool{}
		for _, i := range s.Anomalies {
			anomalous[i] = true
		}
		for i := range s.Times {
			out.WriteString(s.Site)
			out.WriteString(s.Pathway)
			out.WriteString(s.Times[i].Format("2006-01-02"))
			out.WriteString(formatFloat(s.Observed[i]))
			out.WriteString(formatFloat(s.Trend[i]))
			out.WriteString(formatFloat(s.Seasonal[i]))
			out.WriteString(formatFloat(s.Residual[i]))
			if anomalous[i] {
				out.WriteString("yes")
			} else {
				out.WriteString("no")
			}
			if err := out.EndLine(); err != nil {
				return err
			}
		}
	}
	for _, skip := range res.Skipped {
		out.WriteString(skip.Site)
		out.WriteString(skip.Pathway)
		out.WriteString("skipped: " + skip.Reason)
		out.WriteString("")
		out.WriteString("")
		out.WriteString("")
		out.WriteString("")
		out.WriteString("")
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
