package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type ChannelInfo struct {
	Channel  string
	TotalKWh float64
	MeanKWh  float64
	Rate     float64
	Cost     float64
}

type DeviceInfo struct {
	Channel   string
	ThingName string
	Model     string
	Nickname  string
}

type ReportData struct {
	Channels    []ChannelInfo
	Devices     []DeviceInfo
	TotalKWh    float64
	TotalCost   float64
	Window      string
	Granularity string
	RatesSource string
}

func ShowDashboard(data ReportData) error {
	app := tview.NewApplication()
	pages := tview.NewPages()

	// ========== OVERVIEW VIEW ==========
	overview := tview.NewFlex().SetDirection(tview.FlexRow)

	overview.AddItem(tview.NewTextView().
		SetText("OVERVIEW"), 1, 0, false)

	overviewText := fmt.Sprintf(`
powercontribution - per-channel electricity usage

Window:       %s
Granularity:  %s
Rates from:   %s

Total usage:  %.3f kWh
Total cost:   $%.2f

Channels: %d
Devices:  %d

Commands:
[ESC] Quit  [1] Overview  [2] Channels  [3] Devices
`, data.Window, data.Granularity, data.RatesSource, data.TotalKWh, data.TotalCost, len(data.Channels), len(data.Devices))

	overview.AddItem(tview.NewTextView().SetText(overviewText), 0, 1, false)

	// ========== CHANNELS VIEW ==========
	channelsView := tview.NewFlex().SetDirection(tview.FlexRow)
	channelsView.AddItem(tview.NewTextView().
		SetText("CHANNELS"), 1, 0, false)

	channelTable := tview.NewTable().SetBorders(true)
	channelHeaders := []string{"Channel", "Total kWh", "Mean kWh", "$/kWh", "Cost"}
	for i, h := range channelHeaders {
		c := tview.NewTableCell(h).SetAlign(tview.AlignCenter)
		channelTable.SetCell(0, i, c)
	}

	row := 1
	for _, ch := range data.Channels {
		channelTable.SetCell(row, 0, tview.NewTableCell(ch.Channel).SetAlign(tview.AlignLeft))
		channelTable.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%.3f", ch.TotalKWh)).SetAlign(tview.AlignRight))
		channelTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%.3f", ch.MeanKWh)).SetAlign(tview.AlignRight))
		channelTable.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%.4f", ch.Rate)).SetAlign(tview.AlignRight))
		channelTable.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("$%.2f", ch.Cost)).SetAlign(tview.AlignRight))
		row++
	}
	channelTable.SetCell(row, 0, tview.NewTableCell("TOTAL").SetAlign(tview.AlignLeft))
	channelTable.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%.3f", data.TotalKWh)).SetAlign(tview.AlignRight))
	channelTable.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("$%.2f", data.TotalCost)).SetAlign(tview.AlignRight))
	channelsView.AddItem(channelTable, 0, 1, true)

	// ========== DEVICES VIEW ==========
	devicesView := tview.NewFlex().SetDirection(tview.FlexRow)
	devicesView.AddItem(tview.NewTextView().
		SetText("DEVICES"), 1, 0, false)

	deviceTable := tview.NewTable().SetBorders(true)
	deviceHeaders := []string{"Channel", "Thing", "Model", "Nickname"}
	for i, h := range deviceHeaders {
		deviceTable.SetCell(0, i, tview.NewTableCell(h).SetAlign(tview.AlignCenter))
	}
	for i, dev := range data.Devices {
		deviceTable.SetCell(i+1, 0, tview.NewTableCell(dev.Channel).SetAlign(tview.AlignLeft))
		deviceTable.SetCell(i+1, 1, tview.NewTableCell(dev.ThingName).SetAlign(tview.AlignLeft))
		deviceTable.SetCell(i+1, 2, tview.NewTableCell(dev.Model).SetAlign(tview.AlignLeft))
		deviceTable.SetCell(i+1, 3, tview.NewTableCell(dev.Nickname).SetAlign(tview.AlignLeft))
	}
	devicesView.AddItem(deviceTable, 0, 1, true)

	pages.AddPage("overview", overview, true, true)
	pages.AddPage("channels", channelsView, true, false)
	pages.AddPage("devices", devicesView, true, false)

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			app.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case '1':
				pages.SwitchToPage("overview")
				return nil
			case '2':
				pages.SwitchToPage("channels")
				return nil
			case '3':
				pages.SwitchToPage("devices")
				return nil
			case 'q':
				app.Stop()
				return nil
			}
		}
		return event
	})

	return app.SetRoot(pages, true).Run()
}
