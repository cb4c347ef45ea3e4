// Package prompts holds the static analysis prompts offered to MCP clients.
package prompts

import (
	"fmt"
	"strings"
)

// Report types accepted by BIReport.
const (
	ReportExecutive   = "executive"
	ReportOperational = "operational"
	ReportFinancial   = "financial"
	ReportMarketing   = "marketing"
)

// DefaultTimePeriod is used when a report is requested without a period.
const DefaultTimePeriod = "last_month"

// ReportTypes lists the supported report types in display order.
var ReportTypes = []string{ReportExecutive, ReportOperational, ReportFinancial, ReportMarketing}

const salesAnalysis = `Run a full sales analysis over the lakehouse data. Start with list_tables to find the sales, product and calendar tables, then use read_query for every figure you report.

1. **Monthly trend**
   - Month-over-month revenue growth
   - Seasonal patterns
   - Months that break the pattern, and why

2. **Top products**
   - Ten best products by revenue
   - Each product's share of total revenue
   - Trend of each top product over the period

3. **Year-over-year**
   - Current year against the previous one
   - Growth percentage per line of business
   - Largest gainers and largest decliners

4. **Categories**
   - Revenue by product category
   - Fastest growing categories
   - Category contribution to the total

5. **Findings**
   - Three to five key findings
   - Concrete, actionable recommendations
   - Risks and opportunities worth a closer look

Present the result for an executive reader: mark trends with ↑ and ↓, state every change as a percentage and keep recommendations short.

When done, record each key finding with the append_insight tool (category "sales").`

type report struct {
	title    string
	sections []section
	closing  string
	category string
}

type section struct {
	heading string
	items   []string
}

var reports = map[string]report{
	ReportExecutive: {
		title: "an executive dashboard report",
		sections: []section{
			{"Executive Summary", []string{"Overall performance scorecard", "Revenue and profitability", "KPI status", "Issues that need attention now"}},
			{"Financial Highlights", []string{"Revenue by segment and region", "Costs and margins", "Cash flow summary", "Budget against actual"}},
			{"Operational Metrics", []string{"Delivery efficiency", "Customer satisfaction", "Employee productivity", "Quality indicators"}},
			{"Strategic Initiatives", []string{"Progress on key projects", "Milestones reached", "Risk assessment", "Resource allocation"}},
			{"Market Position", []string{"Market share", "Competitive position", "Customer acquisition and retention", "Brand health"}},
			{"Recommendations", []string{"Top three priorities for the next period", "Resource reallocation", "Risk mitigation", "Growth opportunities"}},
		},
		closing:  "Keep it concise and visual, suitable for C-level readers.",
		category: ReportExecutive,
	},
	ReportOperational: {
		title: "an operational efficiency report",
		sections: []section{
			{"Production and Service", []string{"Output volume and trend", "Capacity utilisation", "Downtime", "Defect and return rates"}},
			{"Process Efficiency", []string{"Cycle times", "Bottlenecks", "Improvement opportunities", "Automation potential"}},
			{"Resource Utilisation", []string{"Labour productivity", "Equipment effectiveness (OEE)", "Material usage variance", "Energy consumption"}},
			{"Supply Chain", []string{"Supplier scores", "Inventory turnover", "Fulfilment rate", "Lead times"}},
			{"Cost", []string{"Cost per unit", "Overhead allocation", "Waste reduction", "Savings initiatives"}},
		},
		closing:  "Close with specific, actionable operational recommendations.",
		category: ReportOperational,
	},
	ReportFinancial: {
		title: "a financial analysis report",
		sections: []section{
			{"Income Statement", []string{"Revenue by stream", "Gross margin", "Operating expenses", "EBITDA and net margin"}},
			{"Balance Sheet", []string{"Asset utilisation", "Working capital", "Debt to equity", "Liquidity"}},
			{"Cash Flow", []string{"Operating cash flow", "Free cash flow", "Capital expenditure", "Cash conversion cycle"}},
			{"Ratios", []string{"Profitability (ROE, ROA, ROS)", "Efficiency", "Leverage", "Market value"}},
			{"Variance", []string{"Budget against actual", "Forecast accuracy", "Explanation of large variances", "Corrective actions"}},
			{"Risk", []string{"Currency exposure", "Credit risk", "Market risk", "Mitigations"}},
		},
		closing:  "Include forward-looking guidance.",
		category: ReportFinancial,
	},
	ReportMarketing: {
		title: "a marketing performance report",
		sections: []section{
			{"Campaigns", []string{"ROI per campaign", "Conversion rates", "Cost per acquisition", "Channel comparison"}},
			{"Customers", []string{"Acquisition trend", "Retention and churn", "Lifetime value", "Segments"}},
			{"Digital", []string{"Traffic and engagement", "Search performance", "Social metrics", "Email effectiveness"}},
			{"Brand", []string{"Awareness", "Net Promoter Score", "Share trend", "Competitive position"}},
			{"Funnel", []string{"Lead generation", "Conversion by stage", "Sales cycle length", "Pipeline health"}},
			{"Budget", []string{"Spend by channel", "ROI by activity", "Budget utilisation", "Optimisation opportunities"}},
		},
		closing:  "Finish with data-driven recommendations for the marketing strategy.",
		category: ReportMarketing,
	},
}

// SalesAnalysis returns the comprehensive sales analysis prompt.
func SalesAnalysis() string {
	return salesAnalysis
}

// IsReportType reports whether name is a known report type.
func IsReportType(name string) bool {
	_, ok := reports[name]
	return ok
}

// BIReport returns the report prompt for reportType over timePeriod.
// Unknown types fall back to the executive report; an empty period uses
// DefaultTimePeriod.
func BIReport(reportType, timePeriod string) string {
	r, ok := reports[reportType]
	if !ok {
		r = reports[ReportExecutive]
	}
	if timePeriod == "" {
		timePeriod = DefaultTimePeriod
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate %s for %s, using list_tables and read_query to source every number.\n\n", r.title, timePeriod)
	for _, s := range r.sections {
		fmt.Fprintf(&b, "**%s**\n", s.heading)
		for _, item := range s.items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	b.WriteString(r.closing)
	fmt.Fprintf(&b, "\nSave the key insights with the append_insight tool using category '%s'.", r.category)
	return b.String()
}

// Param is one key/value pair of a custom analysis request.
type Param struct {
	Key   string
	Value string
}

// ParseParams reads "key=value" (or "key: value") lines. Blank lines are
// skipped and a line without a separator becomes a key with an empty value.
func ParseParams(raw string) []Param {
	var out []Param
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			key, value, _ = strings.Cut(line, ":")
		}
		out = append(out, Param{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)})
	}
	return out
}

// Custom returns a free-form analysis prompt for analysisType with params
// listed in order.
func Custom(analysisType string, params []Param) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a %s analysis with the following parameters:\n\n", analysisType)
	for _, p := range params {
		fmt.Fprintf(&b, "- %s: %s\n", p.Key, p.Value)
	}
	b.WriteString("\nProvide clear visualizations and actionable insights.")
	b.WriteString("\nSave important findings using the append_insight tool.")
	return b.String()
}
