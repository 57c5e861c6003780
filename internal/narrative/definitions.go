package narrative

import (
	"fmt"

	"github.com/cadre-oss/storyline/internal/agents"
)

func builtinDefinitions() map[string]*Definition {
	return map[string]*Definition{
		agents.ActionDatabaseQuery:       databaseQuery(),
		agents.ActionBranchOperations:    branchOperations(),
		agents.ActionDesktopOperation:    desktopOperation(),
		agents.ActionNewsAnalysis:        newsAnalysis(),
		agents.ActionConversationSummary: conversationSummary(),
		agents.ActionBranchAnalysis:      branchAnalysis(),
		agents.ActionAnomalyDetection:    anomalyDetection(),
		agents.ActionConversation:        conversation(),
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func rowsStep(format, one, many string) Step {
	return func(c *Context) string {
		n, ok := c.RowCount()
		if !ok {
			return ""
		}
		return fmt.Sprintf(format, plural(n, one, many))
	}
}

func listStep(field, format, one, many string) Step {
	return func(c *Context) string {
		n, _ := c.ListLen(field)
		if n == 0 {
			return ""
		}
		return fmt.Sprintf(format, plural(n, one, many))
	}
}

func exportStep(format string) Step {
	return func(c *Context) string {
		f := c.ExportFile()
		if f == "" {
			return ""
		}
		return fmt.Sprintf(format, f)
	}
}

func operationStep(format string) Step {
	return func(c *Context) string {
		return fmt.Sprintf(format, orDefault(c.OperationName(), "requested"))
	}
}

func databaseQuery() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Designing custom SQL script"),
			func(c *Context) string {
				return "Executing transactional query against " + orDefault(c.Table(), "the core banking database")
			},
			rowsStep("Retrieved %s", "result", "results"),
			exportStep("Exporting results to %s"),
		},
		Contexts: []Rule{
			{
				Name: "empty_result",
				Score: when(95, func(c *Context) bool {
					n, ok := c.RowCount()
					return ok && n == 0
				}),
				Steps: []Step{text("No records matched the requested filters")},
			},
			{
				Name:  "explicit_operation",
				Score: when(90, hasOperation),
				Steps: []Step{
					operationStep("Validating %s operation parameters"),
					text("Confirming transactional integrity"),
				},
			},
			{
				Name:  "generated_sql",
				Score: when(80, hasSQL),
				Steps: []Step{func(c *Context) string {
					return "Optimizing query plan for " + orDefault(c.Table(), "the selected tables")
				}},
			},
			{
				Name:  "aggregation",
				Score: keywordScore(40, "sum", "total", "promedio", "average", "group by", "count", "agrup"),
				Steps: []Step{text("Aggregating totals for the requested metrics")},
			},
			{
				Name:  "date_range",
				Score: keywordScore(30, "fecha", "date", "between", "month", "mes", "year", "ano", "trimestre", "quarter"),
				Steps: []Step{text("Applying the requested date range")},
			},
			{
				Name:  "accounts",
				Score: keywordScore(20, "cliente", "customer", "cuenta", "account"),
				Steps: []Step{text("Matching results to customer accounts")},
			},
		},
	}
}

func branchOperations() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Connecting to branch operations service"),
			func(c *Context) string {
				if t := c.Table(); t != "" {
					return "Reviewing cash box activity in " + t
				}
				return "Reviewing cash box activity"
			},
		},
		Contexts: []Rule{
			{
				Name:  "explicit_operation",
				Score: when(90, hasOperation),
				Steps: []Step{
					operationStep("Preparing %s request for branch systems"),
					text("Awaiting branch confirmation"),
				},
			},
			{
				Name:  "records",
				Score: when(60, hasRows),
				Steps: []Step{rowsStep("Consolidated %s", "branch record", "branch records")},
			},
			{
				Name:  "export",
				Score: when(50, hasExport),
				Steps: []Step{exportStep("Saving branch report as %s")},
			},
			{
				Name:  "cash",
				Score: keywordScore(40, "efectivo", "cash", "caja", "saldo", "balance"),
				Steps: []Step{text("Reconciling cash balances")},
			},
			{
				Name:  "transfers",
				Score: keywordScore(35, "transfer", "traspaso", "deposit", "retiro", "withdraw"),
				Steps: []Step{text("Tracing transfers between cash boxes")},
			},
			{
				Name:  "schedule",
				Score: keywordScore(20, "horario", "hours", "apertura", "cierre", "schedule"),
				Steps: []Step{text("Checking branch schedules")},
			},
		},
	}
}

func desktopOperation() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Preparing desktop workspace"),
			text("Executing requested desktop action"),
		},
		Contexts: []Rule{
			{
				Name:  "export",
				Score: when(90, hasExport),
				Steps: []Step{exportStep("Saving %s to the desktop")},
			},
			{
				Name:  "explicit_operation",
				Score: when(80, hasOperation),
				Steps: []Step{operationStep("Running %s on the desktop")},
			},
			{
				Name:  "spreadsheet",
				Score: keywordScore(40, "excel", "xlsx", "csv", "spreadsheet", "hoja de calculo"),
				Steps: []Step{text("Building spreadsheet output")},
			},
			{
				Name:  "report",
				Score: keywordScore(35, "pdf", "report", "reporte", "informe"),
				Steps: []Step{text("Formatting printable report")},
			},
			{
				Name:  "email",
				Score: keywordScore(20, "email", "correo", "mail"),
				Steps: []Step{text("Drafting email attachment")},
			},
		},
	}
}

func newsAnalysis() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Scanning recent financial news"),
			text("Filtering articles relevant to the request"),
		},
		Contexts: []Rule{
			{
				Name:  "articles",
				Score: when(80, hasItems("analysis")),
				Steps: []Step{listStep("analysis", "Summarizing %s", "relevant article", "relevant articles")},
			},
			{
				Name:  "market",
				Score: keywordScore(40, "mercado", "market", "bolsa", "stock", "indice", "index"),
				Steps: []Step{text("Assessing market sentiment")},
			},
			{
				Name:  "rates",
				Score: keywordScore(35, "tasa", "rate", "interes", "inflation", "inflacion", "banxico", "fed"),
				Steps: []Step{text("Reviewing interest rate outlook")},
			},
			{
				Name:  "currency",
				Score: keywordScore(30, "dolar", "dollar", "peso", "tipo de cambio", "exchange", "divisa"),
				Steps: []Step{text("Tracking currency movements")},
			},
			{
				Name:  "recommendations",
				Score: when(25, hasItems("recommendations")),
				Steps: []Step{listStep("recommendations", "Drafting %s", "market takeaway", "market takeaways")},
			},
		},
	}
}

func conversationSummary() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Reviewing conversation history"),
			text("Identifying key points"),
		},
		Contexts: []Rule{
			{
				Name:  "summary",
				Score: when(70, hasSummary),
				Steps: []Step{text("Condensing findings into a brief summary")},
			},
			{
				Name:  "recommendations",
				Score: when(60, hasItems("recommendations")),
				Steps: []Step{listStep("recommendations", "Highlighting %s", "recommendation", "recommendations")},
			},
			{
				Name:  "follow_up",
				Score: keywordScore(30, "pendiente", "next step", "todo", "follow up", "seguimiento"),
				Steps: []Step{text("Listing follow-up actions")},
			},
		},
	}
}

func branchAnalysis() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Collecting branch performance metrics"),
			text("Comparing branches against targets"),
		},
		Contexts: []Rule{
			{
				Name:  "findings",
				Score: when(80, hasItems("analysis")),
				Steps: []Step{listStep("analysis", "Evaluating %s", "analysis finding", "analysis findings")},
			},
			{
				Name:  "ranking",
				Score: when(60, hasRows),
				Steps: []Step{rowsStep("Ranking %s", "branch", "branches")},
			},
			{
				Name:  "sales",
				Score: keywordScore(40, "ventas", "sales", "revenue", "ingresos"),
				Steps: []Step{text("Breaking down sales by branch")},
			},
			{
				Name:  "region",
				Score: keywordScore(30, "region", "zona", "estado", "state"),
				Steps: []Step{text("Grouping results by region")},
			},
			{
				Name:  "growth",
				Score: keywordScore(25, "crecimiento", "growth", "tendencia", "trend"),
				Steps: []Step{text("Measuring growth trends")},
			},
			{
				Name:  "recommendations",
				Score: when(20, hasItems("recommendations")),
				Steps: []Step{listStep("recommendations", "Proposing %s", "branch action", "branch actions")},
			},
		},
	}
}

func anomalyDetection() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Establishing baseline behavior"),
			text("Scanning transactions for anomalies"),
		},
		Contexts: []Rule{
			{
				Name:  "alerts",
				Score: when(95, hasItems("alerts")),
				Steps: []Step{listStep("alerts", "Flagged %s for review", "alert", "alerts")},
			},
			{
				Name: "clean",
				Score: when(90, func(c *Context) bool {
					n, ok := c.ListLen("alerts")
					return ok && n == 0
				}),
				Steps: []Step{text("No anomalies detected")},
			},
			{
				Name:  "recommendations",
				Score: when(70, hasItems("recommendations")),
				Steps: []Step{listStep("recommendations", "Preparing %s", "mitigation recommendation", "mitigation recommendations")},
			},
			{
				Name:  "fraud",
				Score: keywordScore(50, "fraude", "fraud", "sospechos", "suspicious"),
				Steps: []Step{text("Escalating suspicious patterns")},
			},
			{
				Name:  "thresholds",
				Score: keywordScore(30, "umbral", "threshold", "limite", "limit"),
				Steps: []Step{text("Checking limit thresholds")},
			},
		},
	}
}

func conversation() *Definition {
	return &Definition{
		Sequence: []Step{
			text("Understanding the request"),
		},
		Contexts: []Rule{
			{
				Name:  "answer",
				Score: when(60, hasSummary),
				Steps: []Step{text("Drafting a clear answer")},
			},
			{
				Name: "plan",
				Score: when(40, func(c *Context) bool {
					return c.PlanTitle() != ""
				}),
				Steps: []Step{func(c *Context) string { return c.PlanTitle() }},
			},
			{
				Name:  "greeting",
				Score: keywordScore(20, "hola", "hello", "gracias", "thanks"),
				Steps: []Step{text("Preparing a friendly reply")},
			},
		},
	}
}
