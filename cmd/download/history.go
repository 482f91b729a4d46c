package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/resumable-download/internal/boltdb"
	"github.com/alanbriolat/resumable-download/internal/session"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	stateStyles = map[session.State]lipgloss.Style{
		session.StateCompleted: cellStyle.Foreground(lipgloss.Color("2")),
		session.StateCancelled: cellStyle.Foreground(lipgloss.Color("11")),
		session.StateError:     cellStyle.Foreground(lipgloss.Color("9")),
	}
)

const stateColumn = 1

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list previous downloads",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "markdown",
				Usage: "print the table as markdown",
			},
		},
		Action: func(c *cli.Context) error {
			f, err := fileConfigFromContext(c)
			if err != nil {
				return err
			}
			db, err := boltdb.New(databasePath(c, f))
			if err != nil {
				return err
			}
			defer db.Close()
			records, err := db.ListTransfers()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No downloads yet")
				return nil
			}
			fmt.Println(historyTable(records, c.Bool("markdown")))
			return nil
		},
	}
}

func historyTable(records []session.TransferRecord, markdown bool) string {
	states := make([]session.State, len(records))
	t := table.New().
		Headers("STARTED", "STATE", "BYTES", "URL", "OUTPUT", "ERROR").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == stateColumn && row >= 0 && row < len(states) {
				if style, ok := stateStyles[states[row]]; ok {
					return style
				}
			}
			return cellStyle
		})
	for i, r := range records {
		states[i] = r.State
		t.Row(
			r.StartedAt.Local().Format(time.DateTime),
			string(r.State),
			formatBytes(r),
			r.URL,
			r.OutputPath,
			r.Error,
		)
	}
	if markdown {
		t = t.Border(lipgloss.MarkdownBorder())
	}
	return t.String()
}

func formatBytes(r session.TransferRecord) string {
	if r.TotalBytes > 0 {
		return fmt.Sprintf("%d/%d", r.DownloadedBytes, r.TotalBytes)
	}
	return strconv.FormatInt(r.DownloadedBytes, 10)
}
