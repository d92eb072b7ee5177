package domain

import "fmt"

type TaskStatus string

const (
	TaskOpen       TaskStatus = "Open"
	TaskInProgress TaskStatus = "InProgress"
	TaskDone       TaskStatus = "Done"
)

type TaskKind string

const (
	TaskKindDocumentRequest TaskKind = "document-request"
	TaskKindDocumentReview  TaskKind = "document-review"
)

// Task is a human-facing unit of work owned by the task service. Reference is the stable key
// the engine uses to address it later.
type Task struct {
	Reference string     `json:"reference"`
	ProductID string     `json:"productId"`
	Kind      TaskKind   `json:"kind"`
	Summary   string     `json:"summary"`
	Status    TaskStatus `json:"status"`
}

type TaskUpdate struct {
	Reference string     `json:"reference"`
	ProductID string     `json:"productId"`
	Status    TaskStatus `json:"status"`
	Summary   string     `json:"summary,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	Outcome   *bool      `json:"outcome,omitempty"`
}

type NotificationMessage struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

type ProgressPhase int

const (
	ProgressNone ProgressPhase = iota
	ProgressInProgress
	ProgressDone
)

// ClassifyProgress places done out of total into a task phase.
func ClassifyProgress(done, total int) ProgressPhase {
	switch {
	case done <= 0:
		return ProgressNone
	case done < total:
		return ProgressInProgress
	default:
		return ProgressDone
	}
}

func RequestTaskReference(productID, requestID string) string {
	return "request:" + productID + ":" + requestID
}

// ReviewTaskReference addresses the review task of one received batch.
func ReviewTaskReference(productID, ledgerID string) string {
	return "review:" + productID + ":" + ledgerID
}

func RequestInProgressUpdate(productID, requestID string, sent, total int) TaskUpdate {
	return TaskUpdate{
		Reference: RequestTaskReference(productID, requestID),
		ProductID: productID,
		Status:    TaskInProgress,
		Summary:   fmt.Sprintf("Complete document request: %d/%d", sent, total),
	}
}

func RequestDoneUpdate(productID, requestID string, total int, counterpartyName string) TaskUpdate {
	outcome := true
	return TaskUpdate{
		Reference: RequestTaskReference(productID, requestID),
		ProductID: productID,
		Status:    TaskDone,
		Summary:   fmt.Sprintf("%d document(s) requested from %s", total, counterpartyName),
		Comment:   fmt.Sprintf("Sent %d documents to a counterparty", total),
		Outcome:   &outcome,
	}
}

// ReviewProgressUpdate returns false when nothing is reviewed yet.
func ReviewProgressUpdate(reference, productID string, reviewed, total int) (TaskUpdate, bool) {
	update := TaskUpdate{
		Reference: reference,
		ProductID: productID,
		Summary:   fmt.Sprintf("Complete document review: %d/%d", reviewed, total),
	}
	switch ClassifyProgress(reviewed, total) {
	case ProgressInProgress:
		update.Status = TaskInProgress
	case ProgressDone:
		update.Status = TaskDone
	default:
		return TaskUpdate{}, false
	}
	return update, true
}

func FeedbackUpdate(reference, productID string, accepted, rejected int) TaskUpdate {
	outcome := rejected == 0
	return TaskUpdate{
		Reference: reference,
		ProductID: productID,
		Status:    TaskDone,
		Comment:   fmt.Sprintf("%d documents approved, %d documents rejected", accepted, rejected),
		Outcome:   &outcome,
	}
}

func ReceivedSummary(count int, counterpartyName string) string {
	return fmt.Sprintf("%d document(s) received from %s", count, counterpartyName)
}

func RequestReceivedSummary(count int, counterpartyName string) string {
	return fmt.Sprintf("%d document(s) requested by %s", count, counterpartyName)
}
