// Package notify builds the outbound WhatsApp sharing links the
// dashboards fire after a write. Dispatch is fire-and-forget: the
// response is discarded and a failure is only logged, never surfaced.
package notify

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/Compunic-startup/compunic-management/internal/model"
)

const shareBase = "https://wa.me/"

// ShareLink wraps a formatted message into a wa.me deep link.
func ShareLink(message string) string {
	return shareBase + "?text=" + url.QueryEscape(message)
}

type Notifier struct {
	client  *http.Client
	enabled bool
}

// New returns a notifier; when disabled it still builds links but
// never dispatches them, which is what tests and local runs want.
func New(enabled bool) *Notifier {
	return &Notifier{
		client:  &http.Client{Timeout: 5 * time.Second},
		enabled: enabled,
	}
}

func (n *Notifier) TicketRaised(t model.Ticket) {
	n.send(fmt.Sprintf("*New Ticket Raised*\n\n*Ticket ID:* %s\n*To:* %s\n*From:* %s\n\n*Project:* %s\n*Description:*\n%s",
		t.TicketID, t.AssignedDeveloper, t.RaisedBy, t.ProjectName, t.Description))
}

func (n *Notifier) TicketResolved(t model.Ticket) {
	n.send(fmt.Sprintf("*Ticket Resolved*\n\n*Ticket ID:* %s\n*Resolved By:* %s\n\n*Resolution Notes:*\n%s",
		t.TicketID, t.ResolvedBy, t.ResolutionNotes))
}

func (n *Notifier) LeaveSubmitted(r model.LeaveRequest) {
	n.send(fmt.Sprintf("*Leave Application Submitted*\n\n*Employee:* %s\n*Date:* %s\n*Reason:* %s",
		r.Email, r.LeaveDate, r.Reason))
}

func (n *Notifier) LeaveDecision(r model.LeaveRequest, status model.LeaveStatus) {
	n.send(fmt.Sprintf("*Leave Request Update*\n\nYour leave request for *%s* has been *%s*.",
		r.LeaveDate, status))
}

func (n *Notifier) TaskOverdueReminder(task model.Task) {
	n.send(fmt.Sprintf("*Task Overdue Reminder*\n\n*To:* %s\n*Deadline was:* %s\n\n*Task:*\n%s\n\nPlease provide an update.",
		task.AssignedToEmail, task.Deadline, task.Description))
}

func (n *Notifier) send(message string) {
	link := ShareLink(message)
	if !n.enabled {
		return
	}
	go func() {
		resp, err := n.client.Get(link)
		if err != nil {
			log.Printf("notify: share link dispatch failed: %v", err)
			return
		}
		_ = resp.Body.Close()
	}()
}
