package action

import (
	"context"

	mylog "aigist/internal/log"
	"aigist/internal/models"
)

// Gists is the gist surface a directive may act on.
type Gists interface {
	Create(ctx context.Context, description string, public bool, files map[string]string) (*models.Gist, error)
	Update(ctx context.Context, id string, description *string, files map[string]string) (*models.Gist, error)
	Get(ctx context.Context, id string) (*models.Gist, error)
}

type Dispatcher struct {
	gists Gists
	log   *mylog.Logger
}

func NewDispatcher(g Gists, lg *mylog.Logger) *Dispatcher {
	if lg == nil {
		lg = mylog.Discard()
	}
	return &Dispatcher{gists: g, log: lg}
}

// Dispatch performs the gist operation a directive asks for.
func (d *Dispatcher) Dispatch(ctx context.Context, dir Directive) (*models.Gist, error) {
	switch v := dir.(type) {
	case CreateDirective:
		d.log.Info("action.dispatch", "action", ActionCreate, "files", len(v.Files))
		return d.gists.Create(ctx, v.Description, v.Public, v.Files)
	case UpdateDirective:
		d.log.Info("action.dispatch", "action", ActionUpdate, "gist_id", v.GistID, "files", len(v.Files))
		existing, err := d.gists.Get(ctx, v.GistID)
		if err != nil {
			return nil, err
		}
		desc := v.Description
		if desc == nil {
			prev := existing.Description
			desc = &prev
		}
		return d.gists.Update(ctx, v.GistID, desc, MergeFiles(existing.Contents(), v.Files))
	default:
		return nil, invalid("unsupported directive %T", dir)
	}
}
