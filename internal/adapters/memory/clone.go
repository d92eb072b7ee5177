package memory

import (
	"time"

	"github.com/viralforge/mesh/services/integrations/M32-document-exchange-service/internal/domain"
)

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneDocument(d domain.Document) domain.Document {
	out := d
	out.Context = cloneMap(d.Context)
	out.SharedWith = make([]domain.ShareEntry, len(d.SharedWith))
	for i, entry := range d.SharedWith {
		out.SharedWith[i] = domain.ShareEntry{
			CounterpartyID: entry.CounterpartyID,
			SharedDates:    append([]time.Time(nil), entry.SharedDates...),
		}
	}
	return out
}

func cloneRequest(r domain.Request) domain.Request {
	out := r
	out.Types = append([]string(nil), r.Types...)
	out.Documents = append([]string(nil), r.Documents...)
	out.SentDocumentTypes = append([]string(nil), r.SentDocumentTypes...)
	out.SentDocuments = append([]string(nil), r.SentDocuments...)
	out.DismissedTypes = append([]domain.DismissedType(nil), r.DismissedTypes...)
	out.Notes = append([]domain.Note(nil), r.Notes...)
	return out
}

func cloneLedger(l domain.LedgerEntry) domain.LedgerEntry {
	out := l
	if l.RequestID != nil {
		rid := *l.RequestID
		out.RequestID = &rid
	}
	out.Context = cloneMap(l.Context)
	out.Documents = append([]domain.DocumentFeedback(nil), l.Documents...)
	return out
}
