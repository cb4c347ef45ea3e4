package prompts

import (
	"strings"
	"testing"
)

func TestSalesAnalysisMentionsTools(t *testing.T) {
	p := SalesAnalysis()
	for _, want := range []string{"read_query", "append_insight", "Top products"} {
		if !strings.Contains(p, want) {
			t.Errorf("sales prompt missing %q", want)
		}
	}
}

func TestBIReport_KnownTypes(t *testing.T) {
	for _, rt := range ReportTypes {
		p := BIReport(rt, "Q3 2025")
		if !strings.Contains(p, "for Q3 2025") {
			t.Errorf("%s: period missing", rt)
		}
		if !strings.Contains(p, "category '"+rt+"'") {
			t.Errorf("%s: category hint missing:\n%s", rt, p)
		}
	}
}

func TestBIReport_FallbackAndDefaultPeriod(t *testing.T) {
	p := BIReport("astrology", "")
	if !strings.HasPrefix(p, "Generate an executive dashboard report for last_month") {
		t.Errorf("unexpected fallback prompt:\n%s", p)
	}
	if IsReportType("astrology") || !IsReportType(ReportFinancial) {
		t.Error("IsReportType misclassifies")
	}
}

func TestParseParamsAndCustom(t *testing.T) {
	params := ParseParams("region = EMEA\n\nsegment: enterprise\nflag")
	if len(params) != 3 {
		t.Fatalf("params = %+v", params)
	}
	if params[0] != (Param{"region", "EMEA"}) || params[1] != (Param{"segment", "enterprise"}) || params[2] != (Param{"flag", ""}) {
		t.Errorf("params = %+v", params)
	}

	p := Custom("cohort", params)
	if !strings.HasPrefix(p, "Perform a cohort analysis") {
		t.Errorf("prompt = %q", p)
	}
	if strings.Index(p, "- region: EMEA") > strings.Index(p, "- segment: enterprise") {
		t.Error("parameter order not preserved")
	}
}
