package feed

import "github.com/folio/portfolio/models"

// NoticeKind classifies a user-facing notification.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// View is the render target of a Controller. The controller serializes
// calls, so implementations need no locking of their own, but they must not
// call back into the controller.
type View interface {
	// Insert places c at position pos of the rendered list, newest first.
	Insert(pos int, c models.CommentDTO)
	ShowEmpty()
	HideEmpty()
	Notify(kind NoticeKind, message string)
	// SetBusy toggles the submit control between idle and submitting.
	SetBusy(busy bool)
	ClearForm()
	SetOffline(offline bool)
}
