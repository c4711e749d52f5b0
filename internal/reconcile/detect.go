package reconcile

import (
	"github.com/marcus/bam/internal/merge"
	"github.com/marcus/bam/internal/models"
)

// Diff is the outcome of comparing the registered blocks with the live ones
type Diff struct {
	Create    []models.Block
	Update    []models.BlockUpdate
	Delete    []string
	Unchanged []string
}

// Empty reports whether the diff requires no writes
func (d Diff) Empty() bool {
	return len(d.Create) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// projection is the comparable view of a block used for change detection
type projection struct {
	Name       string
	Category   string
	Supports   map[string]any
	Styles     []models.StyleEntry
	Variations []models.StyleEntry
}

// project builds b's projection. Supports are restricted to the keys both
// sides have, so a support added on only one side does not count as a
// change on its own.
func project(b, other models.Block) projection {
	supports, _ := merge.IntersectSupports(b.Supports, other.Supports)
	return projection{
		Name:       b.Name,
		Category:   b.Category,
		Supports:   merge.SupportValues(supports),
		Styles:     merge.StripEntries(b.Styles),
		Variations: merge.StripEntries(b.Variations),
	}
}

// Changed reports whether the live block differs from the registered one
// once volatile fields are projected away.
func Changed(registered, live models.Block) bool {
	return !merge.Equal(project(registered, live), project(live, registered))
}

// Detect partitions the two collections by name and computes the update
// patches for blocks whose projections differ. Duplicate names resolve to
// the last occurrence.
func Detect(registered, live []models.Block) Diff {
	name := func(b models.Block) string { return b.Name }
	part := merge.PartitionByName(registered, live, name)
	regIdx := merge.IndexByName(registered, name)
	liveIdx := merge.IndexByName(live, name)

	var d Diff
	for _, n := range part.New {
		d.Create = append(d.Create, liveIdx[n].Clone())
	}
	for _, n := range part.Common {
		reg, ed := regIdx[n], liveIdx[n]
		if !Changed(reg, ed) {
			d.Unchanged = append(d.Unchanged, n)
			continue
		}
		d.Update = append(d.Update, models.BlockUpdate{
			Block: Patch(reg, ed),
			Keep:  models.Keep{Styles: false, Variations: false},
		})
	}
	d.Delete = append(d.Delete, part.Deleted...)
	return d
}

// Patch merges a live editor block into its registered record. The editor
// wins for category and informational fields, supports follow the override
// rule, styles and variations merge by name. Access and the admin's support
// overrides stay as registered.
func Patch(registered, live models.Block) models.Block {
	out := registered.Clone()
	out.Category = live.Category
	out.Supports = merge.MergeSupports(registered.Supports, live.Supports)
	out.Styles = merge.MergeEntries(registered.Styles, live.Styles)
	out.Variations = merge.MergeEntries(registered.Variations, live.Variations)
	return out.WithInfo(live)
}

// DisplayMerge builds the list shown to the admin: one entry per live block,
// taken from the server response when the block was just written, otherwise
// from its registered record, with the editor's informational fields on top.
func DisplayMerge(live, registered []models.Block, written map[string]models.Block) []models.Block {
	regIdx := merge.IndexByName(registered, func(b models.Block) string { return b.Name })
	out := make([]models.Block, 0, len(live))
	for _, l := range live {
		if w, ok := written[l.Name]; ok {
			out = append(out, w.Clone().WithInfo(l))
			continue
		}
		if r, ok := regIdx[l.Name]; ok {
			out = append(out, r.Clone().WithInfo(l))
			continue
		}
		out = append(out, l.Clone())
	}
	return out
}
