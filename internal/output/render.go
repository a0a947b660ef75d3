package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/slidecraft/slides-cli/internal/observability"
	"github.com/slidecraft/slides-cli/internal/tui"
)

const maxCellWidth = 40

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Success lipgloss.Style

	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer with styles from the resolved theme.
// Styling is enabled when writing to a TTY, or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme())
}

// NewRendererWithTheme creates a renderer with a specific theme (for testing).
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := isTTY || forceStyled

	// lipgloss.NewRenderer does not carry the profile through table rendering
	// in this version, so set it globally.
	if styled {
		lipgloss.SetColorProfile(2) // TrueColor
	} else {
		lipgloss.SetColorProfile(0) // Ascii
	}

	r := &Renderer{width: width, styled: styled}
	if !styled {
		plain := lipgloss.NewStyle()
		r.Summary, r.Muted, r.Data, r.Error, r.Hint = plain, plain, plain, plain, plain
		r.Success, r.Header, r.Cell, r.CellMuted = plain, plain, plain, plain
		return r
	}

	r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary.Dark)).Bold(true)
	r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark))
	r.Data = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark))
	r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Error.Dark)).Bold(true)
	r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark)).Italic(true)
	r.Success = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Success.Dark))
	r.Header = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark)).Bold(true)
	r.Cell = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark))
	r.CellMuted = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark))
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(f.Fd()); err == nil && cols >= 40 {
			width = cols
		}
		fi, err := f.Stat()
		if err == nil && (fi.Mode()&os.ModeCharDevice) != 0 {
			isTTY = true
		}
	}

	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Next:"))
		b.WriteString("\n")
		for _, bc := range resp.Breadcrumbs {
			line := r.Muted.Render("  " + bc.Cmd)
			if bc.Description != "" {
				line += r.Muted.Render("  # " + bc.Description)
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Stats: " + strings.Join(parts, " | ")))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")
	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		r.renderObject(b, d)

	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		for _, item := range d {
			b.WriteString(r.Data.Render("• " + formatCell(item)))
			b.WriteString("\n")
		}

	case string:
		b.WriteString(r.Data.Render(d))
		b.WriteString("\n")

	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")

	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)))
		b.WriteString("\n")
	}
}

// Column priority for table rendering (lower = higher priority)
var columnPriority = map[string]int{
	"id":                1,
	"title":             2,
	"username":          2,
	"code":              2,
	"topic":             3,
	"version_number":    3,
	"generation_status": 4,
	"status":            4,
	"scores":            4,
	"is_active":         4,
	"is_published":      5,
	"prompt":            6,
	"created_at":        8,
	"timestamp":         8,
	"updated_at":        9,
}

var mutedColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"timestamp":  true,
}

var skipColumns = map[string]bool{
	"image_url":      true,
	"base_image_url": true,
	"preview_image":  true,
	"params":         true,
	"global_style":   true,
}

type column struct {
	key      string
	header   string
	priority int
	muted    bool
	width    int
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := detectColumns(data)
	if len(columns) == 0 {
		return
	}
	columns = r.selectColumns(columns, data)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && columns[col].muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = formatValue(col.key, item[col.key])
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

func detectColumns(data []map[string]any) []column {
	if len(data) == 0 {
		return nil
	}

	var cols []column
	for key, val := range data[0] {
		if skipColumns[key] {
			continue
		}
		switch val.(type) {
		case map[string]any, []map[string]any, []any:
			continue
		}

		priority := columnPriority[key]
		if priority == 0 {
			priority = 50
		}
		cols = append(cols, column{
			key:      key,
			header:   formatHeader(key),
			priority: priority,
			muted:    mutedColumns[key],
		})
	}

	sort.Slice(cols, func(i, j int) bool {
		if cols[i].priority != cols[j].priority {
			return cols[i].priority < cols[j].priority
		}
		return cols[i].key < cols[j].key
	})
	return cols
}

func (r *Renderer) selectColumns(cols []column, data []map[string]any) []column {
	for i := range cols {
		cols[i].width = lipgloss.Width(cols[i].header)
		for _, row := range data {
			if w := lipgloss.Width(formatValue(cols[i].key, row[cols[i].key])); w > cols[i].width {
				cols[i].width = w
			}
		}
	}

	// Drop lowest-priority columns until the table fits.
	const padding = 2
	selected := cols
	for len(selected) > 1 {
		total := 0
		for _, col := range selected {
			total += col.width + padding
		}
		if total <= r.width {
			break
		}
		selected = selected[:len(selected)-1]
	}
	return selected
}

type renderField struct {
	key      string
	priority int
}

// objectFields lists the scalar fields of an object. Lists such as a
// presentation's slides or a slide's versions are shown by their length.
func objectFields(data map[string]any) []renderField {
	var fields []renderField
	for k, v := range data {
		if skipColumns[k] {
			continue
		}
		if _, nested := v.(map[string]any); nested {
			continue
		}
		priority := columnPriority[k]
		if priority == 0 {
			priority = 50
		}
		fields = append(fields, renderField{key: k, priority: priority})
	}
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].priority != fields[j].priority {
			return fields[i].priority < fields[j].priority
		}
		return fields[i].key < fields[j].key
	})
	return fields
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	fields := objectFields(data)
	if len(fields) == 0 {
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
		return
	}

	maxLen := 0
	for _, f := range fields {
		if l := len(formatHeader(f.key)); l > maxLen {
			maxLen = l
		}
	}

	for _, f := range fields {
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, formatHeader(f.key)))
		value := formatValue(f.key, data[f.key])
		if mutedColumns[f.key] {
			b.WriteString(label + r.CellMuted.Render(value) + "\n")
		} else {
			b.WriteString(label + r.Data.Render(value) + "\n")
		}
	}

	if bar, ok := progressBar(data); ok {
		b.WriteString("\n" + r.Success.Render(bar) + "\n")
	}
}

const progressWidth = 24

// progressBar draws generation progress for objects with current and total
// slide counts.
func progressBar(data map[string]any) (string, bool) {
	current, ok1 := data["current"].(float64)
	total, ok2 := data["total"].(float64)
	if !ok1 || !ok2 || total <= 0 {
		return "", false
	}
	done := int(current / total * progressWidth)
	done = max(0, min(done, progressWidth))
	return fmt.Sprintf("[%s%s] %d/%d slides",
		strings.Repeat("#", done), strings.Repeat("-", progressWidth-done),
		int64(current), int64(total)), true
}

var titleCaser = cases.Title(language.English)

func formatHeader(key string) string {
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.TrimSuffix(key, " at")
	if strings.HasPrefix(key, "is ") {
		key = strings.TrimPrefix(key, "is ")
	}
	return titleCaser.String(key)
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return ansi.Truncate(v, maxCellWidth, "...")
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case int, int64:
		return fmt.Sprintf("%d", v)
	case map[string]any:
		if name, ok := v["username"].(string); ok {
			return name
		}
		if title, ok := v["title"].(string); ok {
			return ansi.Truncate(title, maxCellWidth, "...")
		}
		if id, ok := v["id"]; ok {
			return fmt.Sprintf("%v", id)
		}
		return ""
	default:
		return ansi.Truncate(fmt.Sprintf("%v", v), maxCellWidth, "...")
	}
}

// formatValue formats a field by what its key holds. The backend sends
// flags such as is_published as 0/1 and progress as a whole percentage.
func formatValue(key string, val any) string {
	switch v := val.(type) {
	case float64:
		switch {
		case strings.HasPrefix(key, "is_"):
			return formatCell(v != 0)
		case key == "percentage":
			return fmt.Sprintf("%d%%", int64(v))
		}
	case []any:
		return fmt.Sprintf("%d", len(v))
	case []map[string]any:
		return fmt.Sprintf("%d", len(v))
	}
	return formatDateValue(key, val)
}

// formatDateValue renders timestamp fields relative to now when recent.
// Backend timestamps are ISO8601 strings or unix seconds.
func formatDateValue(key string, val any) string {
	if !strings.HasSuffix(key, "_at") && key != "timestamp" {
		return formatCell(val)
	}

	var t time.Time
	switch v := val.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			parsed, err = time.Parse("2006-01-02T15:04:05.999999", v)
			if err != nil {
				return formatCell(val)
			}
		}
		t = parsed
	case float64:
		t = time.Unix(int64(v), 0)
	default:
		return formatCell(val)
	}

	diff := time.Since(t)
	switch {
	case diff < 0:
		return t.Format("Jan 2, 2006")
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return plural(days, "day") + " ago"
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func statsParts(meta map[string]any) []string {
	if meta == nil {
		return nil
	}
	stats, _ := meta["stats"].(map[string]any)
	if stats == nil {
		return nil
	}
	return observability.SummaryFromMap(stats).FormatParts()
}

// MarkdownRenderer outputs literal Markdown syntax (portable, pipeable).
type MarkdownRenderer struct{}

// NewMarkdownRenderer creates a renderer for literal Markdown output.
func NewMarkdownRenderer(_ io.Writer) *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// RenderResponse renders a success response as literal Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	switch d := NormalizeData(resp.Data).(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
		} else {
			r.renderTable(&b, d)
		}
	case map[string]any:
		fields := objectFields(d)
		if len(fields) == 0 {
			b.WriteString("*No data*\n")
		}
		for _, f := range fields {
			b.WriteString("- **" + formatHeader(f.key) + ":** " + formatValue(f.key, d[f.key]) + "\n")
		}
	case []any:
		for _, item := range d {
			b.WriteString("- " + formatCell(item) + "\n")
		}
	case nil:
		b.WriteString("*No data*\n")
	default:
		fmt.Fprintf(&b, "%v\n", d)
	}

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as literal Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString("**Error:** " + resp.Error + "\n")
	if resp.Hint != "" {
		b.WriteString("\n*Hint: " + resp.Hint + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *MarkdownRenderer) renderTable(b *strings.Builder, data []map[string]any) {
	cols := detectColumns(data)
	if len(cols) == 0 {
		return
	}

	headers := make([]string, len(cols))
	seps := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.header
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = strings.ReplaceAll(formatValue(col.key, item[col.key]), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}
