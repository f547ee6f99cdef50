package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func main() {
	addr := flag.String("addr", "http://localhost:8090", "botmindd base URL")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	principal := flag.String("principal", "", "principal sent as X-Principal when auth is disabled")
	token := flag.String("token", "", "bearer token when auth is enabled")
	world := flag.String("world", "", "world to show (default: first world)")
	events := flag.Int("events", 50, "number of recent events to show")
	flag.Parse()

	c := &client{
		baseURL:   strings.TrimRight(*addr, "/"),
		principal: *principal,
		token:     *token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := c.waitHealth(30 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "botmindd health check failed: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()
	botsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	botsTable.SetTitle("Bots").SetBorder(true)

	jobsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	jobsTable.SetTitle("Jobs").SetBorder(true)

	eventsView := tview.NewTextView().
		SetDynamicColors(false).
		SetWrap(false)
	eventsView.SetTitle("Events").SetBorder(true)

	commandInput := tview.NewInputField().
		SetLabel("Command: ")
	commandInput.SetBorder(true).SetTitle("<bot> <command>, Enter = queue")

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(botsTable, 0, 1, false).
		AddItem(jobsTable, 0, 1, false)
	mainLayout := tview.NewFlex().
		AddItem(left, 0, 3, false).
		AddItem(eventsView, 0, 2, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, false).
		AddItem(commandInput, 3, 0, true).
		AddItem(statusView, 3, 0, false)

	var mu sync.Mutex
	current := *world

	activeWorld := func() string {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() {
			statusView.SetText(msg)
		})
	}

	refresh := func() {
		w := activeWorld()
		if w == "" {
			worlds, err := c.listWorlds()
			if err != nil {
				setStatusAsync("[red]worlds: " + err.Error())
				return
			}
			if len(worlds) == 0 {
				setStatusAsync("No worlds registered")
				return
			}
			w = worlds[0].Name
			mu.Lock()
			current = w
			mu.Unlock()
		}

		bots, err := c.listBots(w)
		if err != nil {
			setStatusAsync("[red]bots: " + err.Error())
			return
		}
		jobs, err := c.listJobs(w)
		if err != nil {
			setStatusAsync("[red]jobs: " + err.Error())
			return
		}
		recent, err := c.listEvents(*events)
		if err != nil {
			setStatusAsync("[red]events: " + err.Error())
			return
		}

		app.QueueUpdateDraw(func() {
			botsTable.SetTitle(fmt.Sprintf("Bots in %s (%d)", w, len(bots)))
			renderBotsTable(botsTable, bots)
			jobsTable.SetTitle(fmt.Sprintf("Jobs (%d)", len(jobs)))
			renderJobsTable(jobsTable, jobs)
			eventsView.SetText(renderEvents(recent))
			statusView.SetText(fmt.Sprintf(
				"%s | world=%s | updated %s | F10 quit, F5 refresh, Tab switch focus",
				c.baseURL, w, time.Now().Format("15:04:05"),
			))
		})
	}

	commandInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := strings.TrimSpace(commandInput.GetText())
		if line == "" {
			return
		}
		commandInput.SetText("")
		w := activeWorld()
		go func() {
			task, err := c.queueCommand(w, line)
			if err != nil {
				setStatusAsync("[red]queue failed: " + err.Error())
				return
			}
			setStatusAsync(fmt.Sprintf("[green]queued %s (%s)", shortID(task.ID), task.Kind))
			refresh()
		}()
	})

	focus := []tview.Primitive{commandInput, botsTable, jobsTable}
	focusIdx := 0
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			go refresh()
			return nil
		case tcell.KeyTab:
			focusIdx = (focusIdx + 1) % len(focus)
			app.SetFocus(focus[focusIdx])
			return nil
		}
		return event
	})

	stop := make(chan struct{})
	go func() {
		refresh()
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refresh()
			case <-stop:
				return
			}
		}
	}()

	err := app.SetRoot(root, true).EnableMouse(true).Run()
	close(stop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}
