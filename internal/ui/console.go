// Package ui provides styled console output for the Stark AI service.
// It colorizes dispatch events so failovers and cool-downs stand out in a
// terminal next to the structured log stream.
package ui

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

var (
	// Badge colors
	successBadge = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warningBadge = color.New(color.FgYellow, color.Bold)
	errorBadge   = color.New(color.BgRed, color.FgWhite, color.Bold)
	infoBadge    = color.New(color.FgCyan, color.Bold)
	debugBadge   = color.New(color.FgMagenta)

	// Text colors
	successText = color.New(color.FgGreen, color.Bold)
	warningText = color.New(color.FgYellow)
	errorText   = color.New(color.FgRed)
	infoText    = color.New(color.FgCyan)
	mutedText   = color.New(color.FgHiBlack)
	accentText  = color.New(color.FgMagenta, color.Bold)
	neonBlue    = color.New(color.FgHiCyan, color.Bold)

	// Method colors
	methodPOST = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	methodGET  = color.New(color.BgHiCyan, color.FgBlack, color.Bold)
)

// PrintFailover logs a provider failover with warning styling.
// Format: ⚠️ [FAILOVER] from → to (reason)
func PrintFailover(from, to, reason string) {
	fmt.Print("⚠️  ")
	warningBadge.Print("[FAILOVER]")
	fmt.Print(" ")
	mutedText.Print(from)
	warningText.Print(" → ")
	accentText.Print(to)
	mutedText.Printf(" (%s)\n", reason)
}

// PrintCooling logs when a provider enters its cool-down window.
// Format: 💤 [COOLING] provider excluded until HH:MM:SS
func PrintCooling(provider string, until time.Time) {
	fmt.Print("💤 ")
	errorBadge.Print(" COOLING ")
	fmt.Print(" ")
	errorText.Print(provider)
	mutedText.Printf(" excluded until %s\n", until.Format("15:04:05"))
}

// PrintRecovered logs when a provider comes back.
func PrintRecovered(provider string) {
	successBadge.Print(" RECOVERED ")
	fmt.Print(" ")
	successText.Println(provider)
}

// PrintDispatchInfo logs general dispatch information.
// Format: [DISPATCH] message
func PrintDispatchInfo(msg string) {
	infoBadge.Print("[DISPATCH]")
	fmt.Print(" ")
	infoText.Println(msg)
}

// PrintRequest logs a request with styled output.
// Color-codes status, method, and latency for quick visual parsing.
func PrintRequest(method, path string, status int, latency time.Duration, provider string) {
	mutedText.Printf("%s ", time.Now().Format("15:04:05"))

	printMethodBadge(method)
	fmt.Print(" ")

	fmt.Printf("%-20s ", truncatePath(path, 20))

	printStatusBadge(status)
	fmt.Print(" ")

	printLatency(latency)
	fmt.Print(" ")

	if provider != "" {
		mutedText.Printf("via:%s", provider)
	}

	fmt.Println()
}

// printMethodBadge prints the HTTP method with appropriate color.
func printMethodBadge(method string) {
	switch method {
	case "POST":
		methodPOST.Printf(" %s ", method)
	case "GET":
		methodGET.Printf(" %s ", method)
	default:
		debugBadge.Printf(" %s ", method)
	}
}

// printStatusBadge prints the status code with appropriate color.
func printStatusBadge(status int) {
	switch {
	case status >= 200 && status < 300:
		successBadge.Printf(" %d ", status)
	case status >= 300 && status < 400:
		infoBadge.Printf(" %d ", status)
	case status >= 400 && status < 500:
		warningBadge.Printf(" %d ", status)
	default:
		errorBadge.Printf(" %d ", status)
	}
}

// printLatency prints latency with color gradient.
// Green: < 100ms, Yellow: < 500ms, Red: >= 500ms
func printLatency(latency time.Duration) {
	ms := latency.Milliseconds()
	latencyStr := fmt.Sprintf("%4dms", ms)

	switch {
	case ms < 100:
		successText.Print(latencyStr)
	case ms < 500:
		warningText.Print(latencyStr)
	default:
		errorText.Print(latencyStr)
	}
}

// truncatePath truncates a path to maxLen characters.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return path[:maxLen-3] + "..."
}

// PrintStartupInfo prints styled server startup information.
func PrintStartupInfo(host string, port int, providers int, policy string) {
	fmt.Println()
	infoBadge.Print("[DISPATCH]")
	fmt.Print(" Server starting on ")
	neonBlue.Printf("http://%s:%d\n", host, port)

	infoBadge.Print("[DISPATCH]")
	fmt.Print(" Enabled providers: ")
	if providers > 0 {
		successText.Printf("%d", providers)
	} else {
		errorText.Print("0")
	}
	fmt.Print(" | Policy: ")
	accentText.Println(policy)

	fmt.Println()
	printEndpoints()
}

// printEndpoints prints the available API endpoints.
func printEndpoints() {
	mutedText.Println("  ┌────────────────────────────────────────────────────┐")
	mutedText.Print("  │ ")
	methodPOST.Print(" POST ")
	fmt.Print(" /api/chat    ")
	mutedText.Print("  Dispatch a chat message       ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodPOST.Print(" POST ")
	fmt.Print(" /api/clear   ")
	mutedText.Print("  Clear conversation history    ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodGET.Print(" GET  ")
	fmt.Print(" /api/metrics ")
	mutedText.Print("  Usage statistics              ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodGET.Print(" GET  ")
	fmt.Print(" /api/logs    ")
	mutedText.Print("  Recent activity               ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodGET.Print(" GET  ")
	fmt.Print(" /health      ")
	mutedText.Print("  Provider availability         ")
	mutedText.Println(" │")

	mutedText.Print("  │ ")
	methodGET.Print(" GET  ")
	fmt.Print(" /metrics     ")
	mutedText.Print("  Prometheus scrape endpoint    ")
	mutedText.Println(" │")

	mutedText.Println("  └────────────────────────────────────────────────────┘")
	fmt.Println()
}

// PrintShutdown prints a styled shutdown message.
func PrintShutdown() {
	fmt.Println()
	warningBadge.Print("[SHUTDOWN]")
	warningText.Println(" Graceful shutdown initiated...")
}

// PrintGoodbye prints a styled goodbye message.
func PrintGoodbye() {
	successBadge.Print(" OK ")
	fmt.Print(" ")
	successText.Println("Server stopped. Goodbye! 👋")
}
