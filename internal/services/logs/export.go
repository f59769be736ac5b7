package logs

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Pimboto/automation-bot-ui/internal/models"
)

// ExportFormat selects the serialization of an export.
type ExportFormat string

const (
	FormatText ExportFormat = "text"
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatHTML ExportFormat = "html"
	FormatPDF  ExportFormat = "pdf"
)

// ParseExportFormat validates a user-supplied format string.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "txt":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", s)
	}
}

// SessionMeta is the session context embedded in exports.
type SessionMeta struct {
	SessionID  string `json:"session_id"`
	DeviceName string `json:"device_name"`
	Flow       string `json:"flow"`
	Status     string `json:"status"`
}

// Export is a produced payload plus its suggested filename. Triggering the
// actual browser download is the caller's responsibility.
type Export struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

const exportTimeFormat = "2006-01-02 15:04:05.000"

// ExportLogs serializes a log set plus session metadata into the requested
// format. Pure: no network or storage side effects.
func ExportLogs(logs []models.AutomationLog, meta SessionMeta, format ExportFormat, now time.Time) (*Export, error) {
	switch format {
	case FormatText:
		return &Export{
			Data:     exportText(logs),
			Filename: exportFilename(meta.SessionID, now, "txt"),
			MimeType: "text/plain",
		}, nil
	case FormatJSON:
		data, err := exportJSON(logs, meta, now)
		if err != nil {
			return nil, err
		}
		return &Export{
			Data:     data,
			Filename: exportFilename(meta.SessionID, now, "json"),
			MimeType: "application/json",
		}, nil
	case FormatCSV:
		data, err := exportCSV(logs)
		if err != nil {
			return nil, err
		}
		return &Export{
			Data:     data,
			Filename: exportFilename(meta.SessionID, now, "csv"),
			MimeType: "text/csv",
		}, nil
	case FormatHTML:
		return &Export{
			Data:     exportHTML(logs, meta, now),
			Filename: exportFilename(meta.SessionID, now, "html"),
			MimeType: "text/html",
		}, nil
	case FormatPDF:
		data, err := exportPDF(logs, meta, now)
		if err != nil {
			return nil, err
		}
		return &Export{
			Data:     data,
			Filename: exportFilename(meta.SessionID, now, "pdf"),
			MimeType: "application/pdf",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}

// exportFilename builds "session_<id8>_<date>.<ext>".
func exportFilename(sessionID string, now time.Time, ext string) string {
	id := sessionID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("session_%s_%s.%s", id, now.Format("2006-01-02"), ext)
}

func exportText(logs []models.AutomationLog) []byte {
	var b strings.Builder
	for _, log := range logs {
		b.WriteString("[")
		b.WriteString(log.Timestamp.Format(exportTimeFormat))
		b.WriteString("] [")
		b.WriteString(strings.ToUpper(string(log.Level)))
		b.WriteString("] ")
		b.WriteString(log.Message)
		if len(log.Data) > 0 {
			if data, err := json.Marshal(log.Data); err == nil {
				b.WriteString(" ")
				b.Write(data)
			}
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func exportJSON(logs []models.AutomationLog, meta SessionMeta, now time.Time) ([]byte, error) {
	doc := struct {
		Session    SessionMeta            `json:"session"`
		ExportedAt time.Time              `json:"exported_at"`
		LogCount   int                    `json:"log_count"`
		Logs       []models.AutomationLog `json:"logs"`
	}{
		Session:    meta,
		ExportedAt: now,
		LogCount:   len(logs),
		Logs:       logs,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}

func exportCSV(logs []models.AutomationLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Timestamp", "Level", "Message", "Data"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, log := range logs {
		data := ""
		if len(log.Data) > 0 {
			if raw, err := json.Marshal(log.Data); err == nil {
				data = string(raw)
			}
		}
		record := []string{
			log.Timestamp.Format(exportTimeFormat),
			string(log.Level),
			log.Message,
			data,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

var levelColors = map[models.LogLevel]string{
	models.LogLevelError: "#e74c3c",
	models.LogLevelWarn:  "#f39c12",
	models.LogLevelInfo:  "#2c3e50",
	models.LogLevelDebug: "#7f8c8d",
}

func exportHTML(logs []models.AutomationLog, meta SessionMeta, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>Session Logs - " + html.EscapeString(meta.SessionID) + "</title>\n")
	b.WriteString("<style>body{font-family:monospace;margin:20px}.log{padding:2px 4px}.meta{background:#ecf0f1;padding:10px;margin-bottom:12px}</style>\n")
	b.WriteString("</head>\n<body>\n")

	b.WriteString("<div class=\"meta\">\n")
	b.WriteString("<strong>Session:</strong> " + html.EscapeString(meta.SessionID) + "<br>\n")
	b.WriteString("<strong>Device:</strong> " + html.EscapeString(meta.DeviceName) + "<br>\n")
	b.WriteString("<strong>Flow:</strong> " + html.EscapeString(meta.Flow) + "<br>\n")
	b.WriteString("<strong>Status:</strong> " + html.EscapeString(meta.Status) + "<br>\n")
	b.WriteString("<strong>Exported:</strong> " + now.Format(time.RFC3339) + " (" + fmt.Sprintf("%d", len(logs)) + " logs)\n")
	b.WriteString("</div>\n")

	for _, log := range logs {
		color, ok := levelColors[log.Level]
		if !ok {
			color = "#2c3e50"
		}
		b.WriteString("<div class=\"log\" style=\"color:" + color + "\">")
		b.WriteString("[" + log.Timestamp.Format(exportTimeFormat) + "] ")
		b.WriteString("[" + strings.ToUpper(string(log.Level)) + "] ")
		b.WriteString(html.EscapeString(log.Message))
		if len(log.Data) > 0 {
			if data, err := json.Marshal(log.Data); err == nil {
				b.WriteString(" " + html.EscapeString(string(data)))
			}
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}

func exportPDF(logs []models.AutomationLog, meta SessionMeta, now time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Session Logs", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Session: "+meta.SessionID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Device: "+meta.DeviceName+"  Flow: "+meta.Flow+"  Status: "+meta.Status, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Exported: %s (%d logs)", now.Format(time.RFC3339), len(logs)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Courier", "", 7)
	for _, log := range logs {
		switch log.Level {
		case models.LogLevelError:
			pdf.SetTextColor(231, 76, 60)
		case models.LogLevelWarn:
			pdf.SetTextColor(243, 156, 18)
		default:
			pdf.SetTextColor(44, 62, 80)
		}

		line := "[" + log.Timestamp.Format(exportTimeFormat) + "] [" + strings.ToUpper(string(log.Level)) + "] " + log.Message
		if len(log.Data) > 0 {
			if data, err := json.Marshal(log.Data); err == nil {
				line += " " + string(data)
			}
		}
		pdf.MultiCell(0, 3.5, line, "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}
