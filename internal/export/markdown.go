package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/Tohoso/restaurant-scraper/internal/model"
	"github.com/Tohoso/restaurant-scraper/internal/normalize"
)

// MarkdownWriter outputs results in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScrapeReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummaryTable(md, report.Summary())
	w.writeRunStats(md, report)
	w.writeListings(md, report)

	return len(md.String()), md.Build()
}

// WriteSummary outputs only the data-quality summary in Markdown format.
func (w *MarkdownWriter) WriteSummary(summary model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("収集結果サマリー")
	md.PlainText("")
	w.writeSummaryTable(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScrapeReport) {
	md.H1("飲食店リスト収集レポート")
	md.PlainText("")

	areas := strings.Join(report.Areas, ", ")
	if areas == "" {
		areas = "全エリア"
	}

	md.Table(markdown.TableSet{
		Header: []string{"項目", "値"},
		Rows: [][]string{
			{"対象エリア", areas},
			{"開始日時", report.StartedAt.Format("2006-01-02 15:04:05")},
			{"取得件数", strconv.Itoa(len(report.Listings))},
			{"状態", w.statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the run status based on report state.
func (w *MarkdownWriter) statusText(report *model.ScrapeReport) string {
	if report.TimedOut {
		return "中断（部分的な結果）"
	}
	if report.ErrorMessage != "" {
		return "エラー - " + report.ErrorMessage
	}
	return "完了"
}

// writeSummaryTable writes the data-quality counts.
func (w *MarkdownWriter) writeSummaryTable(md *markdown.Markdown, summary model.Summary) {
	md.H2("データ品質")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"項目", "件数"},
		Rows: [][]string{
			{"総件数", strconv.Itoa(summary.Total)},
			{"電話番号あり", strconv.Itoa(summary.WithPhone)},
			{"住所あり", strconv.Itoa(summary.WithAddress)},
			{"ジャンルあり", strconv.Itoa(summary.WithGenre)},
			{"最寄り駅あり", strconv.Itoa(summary.WithStation)},
			{"食べログ", strconv.Itoa(summary.TabelogCount)},
			{"ホットペッパーグルメ", strconv.Itoa(summary.HotPepperCount)},
		},
	})
	md.PlainText("")
}

// writeRunStats writes the fetch counters.
func (w *MarkdownWriter) writeRunStats(md *markdown.Markdown, report *model.ScrapeReport) {
	md.H2("実行統計")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"項目", "件数"},
		Rows: [][]string{
			{"取得ページ数", strconv.Itoa(report.PagesFetched)},
			{"スキップURL数", strconv.Itoa(report.URLsSkipped)},
			{"レート制限回数", strconv.Itoa(report.RateLimited)},
			{"取得エラー数", strconv.Itoa(report.FetchErrors)},
			{"除外件数", strconv.Itoa(report.Dropped)},
			{"重複除去件数", strconv.Itoa(report.DuplicatesRemoved)},
		},
	})
	md.PlainText("")
}

// writeListings writes the listing table.
func (w *MarkdownWriter) writeListings(md *markdown.Markdown, report *model.ScrapeReport) {
	md.H2("店舗一覧")
	md.PlainText("")

	if len(report.Listings) == 0 {
		md.PlainText("収集された店舗はありません。")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Listings))
	for i := range report.Listings {
		l := &report.Listings[i]
		rows[i] = []string{
			strconv.Itoa(i + 1),
			l.Name,
			l.Phone,
			normalize.TruncateText(l.Address, 30),
			l.Genre,
			l.Station,
			l.Source.Label(),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"No.", "店名", "電話番号", "住所", "ジャンル", "最寄り駅", "情報源"},
		Rows:   rows,
	})
	md.PlainText("")
}
