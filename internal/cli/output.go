package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Session:
		o.printSession(v)
	case []Session:
		o.printSessions(v)
	case []Participant:
		o.printParticipants(v)
	case []Person:
		o.printPeople(v)
	case Report:
		o.printReport(v)
	case CancelResult:
		o.printCancelResult(v)
	case ScheduleText:
		fmt.Println(v.Text)
	case TokenResult:
		o.printTokenResult(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Session response type (matches API)
type Session struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Date      string    `json:"date"`
	Title     string    `json:"title"`
	Lifecycle string    `json:"lifecycle"`
	CreatedAt time.Time `json:"created_at"`
}

// Person response type
type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Nickname  string `json:"nickname"`
	Age       int    `json:"age"`
	Handle    string `json:"handle,omitempty"`
}

// Participant response type
type Participant struct {
	Person Person `json:"person"`
	Tag    string `json:"tag"`
}

// Report response type
type Report struct {
	BatchID   string  `json:"batch_id"`
	Delivered int     `json:"delivered"`
	Failed    int     `json:"failed"`
	FailedIDs []int64 `json:"failed_ids,omitempty"`
}

// CancelResult response type
type CancelResult struct {
	Removed []int64 `json:"removed"`
	Report  Report  `json:"report"`
}

// ScheduleText response type
type ScheduleText struct {
	Text string `json:"text"`
}

// TokenResult is a freshly generated organizer token
type TokenResult struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
}

// HealthResult response type
type HealthResult struct {
	Status        string `json:"status"`
	Ledger        string `json:"ledger,omitempty"`
	Conversations string `json:"conversations,omitempty"`
	UpdateMode    string `json:"update_mode,omitempty"`
}

func (o *Output) printSession(s Session) {
	fmt.Printf("Session: %s (%d)\n", s.Title, s.ID)
	fmt.Printf("Kind: %s\n", s.Kind)
	fmt.Printf("Lifecycle: %s\n", s.Lifecycle)
}

func (o *Output) printSessions(sessions []Session) {
	if len(sessions) == 0 {
		fmt.Println("No sessions")
		return
	}
	for _, s := range sessions {
		archived := ""
		if s.Lifecycle != "active" {
			archived = " [" + s.Lifecycle + "]"
		}
		fmt.Printf("%4d  %s%s\n", s.ID, s.Title, archived)
	}
}

func (o *Output) printParticipants(participants []Participant) {
	if len(participants) == 0 {
		fmt.Println("No participants")
		return
	}
	for i, p := range participants {
		fmt.Printf("%d. %s %s (%s) - %s\n", i+1, p.Person.FirstName, p.Person.LastName, p.Person.Nickname, p.Tag)
	}
}

func (o *Output) printPeople(people []Person) {
	fmt.Printf("People (%d):\n", len(people))
	for _, p := range people {
		handle := ""
		if p.Handle != "" {
			handle = " @" + p.Handle
		}
		fmt.Printf("  - %s %s (%s), %d%s [%d]\n", p.FirstName, p.LastName, p.Nickname, p.Age, handle, p.ID)
	}
}

func (o *Output) printReport(r Report) {
	fmt.Printf("Batch: %s\n", r.BatchID)
	fmt.Printf("Delivered: %d\n", r.Delivered)
	if r.Failed > 0 {
		ids := make([]string, len(r.FailedIDs))
		for i, id := range r.FailedIDs {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Printf("Failed: %d (%s)\n", r.Failed, strings.Join(ids, ", "))
	}
}

func (o *Output) printCancelResult(c CancelResult) {
	fmt.Printf("Removed registrations: %d\n", len(c.Removed))
	o.printReport(c.Report)
}

func (o *Output) printTokenResult(t TokenResult) {
	fmt.Printf("Token: %s\n", t.Token)
	fmt.Printf("Hash:  %s\n", t.Hash)
	fmt.Println("Set ADMIN_TOKEN_HASH on the server to the hash.")
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status:        %s\n", h.Status)
	if h.Ledger != "" {
		fmt.Printf("Ledger:        %s\n", h.Ledger)
		fmt.Printf("Conversations: %s\n", h.Conversations)
		fmt.Printf("Updates:       %s\n", h.UpdateMode)
	}
}
