package transfer

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/document"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/storage"
)

// Issue messages shared by dry runs and real runs.
const (
	msgAssetMissing   = "asset missing, reference will be copied without the file"
	msgIDExists       = "identifier already exists"
	msgNotInSource    = "not found in source document"
	msgUnknownOutput  = "output parameter %q is not known to the target model"
	msgOutputsUnknown = "target model parameters could not be read, output check skipped"
)

// assetCopy is one file the transfer will place in the target folder.
type assetCopy struct {
	Src   string // absolute source path
	Dst   string // absolute target path
	Rel   string // target path relative to the target folder
	Skip  bool   // identical file already present
	Owner string // first hotkey that needs it

	copied bool
}

type plannedHotkey struct {
	SourceID string
	Hotkey   *document.Hotkey
}

type plannedMapping struct {
	SourceName string
	Mapping    *document.ParameterMapping
}

// plan is everything a transfer will do, computed before any write.
type plan struct {
	SrcPath, DstPath string
	SrcDir, DstDir   string
	Src, Dst         *document.Document
	DstRaw           []byte

	Hotkeys  []plannedHotkey
	Mappings []plannedMapping
	Assets   []*assetCopy

	Warnings      []models.Issue
	ElementErrors []models.Issue
	IDMap         map[string]string
	Changelog     []string

	written bool
}

func (p *plan) warn(kind models.Kind, element, check, msg string) {
	p.Warnings = append(p.Warnings, models.Issue{Kind: kind, Element: element, Check: check, Message: msg})
}

func (p *plan) fail(kind models.Kind, element, check, msg string) {
	p.ElementErrors = append(p.ElementErrors, models.Issue{Kind: kind, Element: element, Check: check, Message: msg})
}

func (p *plan) copies() (copied, skipped int) {
	for _, a := range p.Assets {
		if a.Skip {
			skipped++
		} else {
			copied++
		}
	}
	return copied, skipped
}

// loadPair parses and validates source and target. Any error aborts the
// transfer before planning.
func (e *Engine) loadPair(srcPath, dstPath string) (*plan, *models.EngineError) {
	p := &plan{
		SrcPath: srcPath,
		DstPath: dstPath,
		SrcDir:  filepath.Dir(srcPath),
		DstDir:  filepath.Dir(dstPath),
		IDMap:   make(map[string]string),
	}

	src, _, err := e.load(srcPath)
	if err != nil {
		return nil, loadError("source", srcPath, err)
	}
	dst, raw, err := e.load(dstPath)
	if err != nil {
		return nil, loadError("target", dstPath, err)
	}
	p.Src, p.Dst, p.DstRaw = src, dst, raw

	var rep models.Report
	rep.Merge("source", document.Validate(src, document.ValidateOptions{}))
	rep.Merge("target", document.Validate(dst, document.ValidateOptions{}))
	if !rep.OK() {
		first := rep.Errors[0]
		ee := models.Errorf(models.KindValidation, first.Element, first.Check, nil, "%s", first.Message)
		ee.Untouched = true
		return p, ee
	}
	return p, nil
}

func loadError(role, path string, err error) *models.EngineError {
	kind := models.KindIO
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		kind = models.KindStructural
	}
	ee := models.Errorf(kind, role, "load", err, "could not load %s document %s", role, filepath.Base(path))
	ee.Untouched = true
	return ee
}

// build computes the element copies and the asset operations of the
// transfer. Element-level problems land in ElementErrors; selection problems
// (ids missing from the source) are returned as a hard error.
func (e *Engine) build(p *plan, spec models.TransferSpec) *models.EngineError {
	// 1. Every selected id must exist in the source.
	var missing []string
	for _, id := range dedupe(spec.HotkeyIDs) {
		if p.Src.Hotkey(id) == nil {
			missing = append(missing, id)
		}
	}
	for _, name := range dedupe(spec.MappingIDs) {
		if p.Src.Mapping(name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		for _, id := range missing {
			p.fail(models.KindReferential, id, "selected_exists", msgNotInSource)
		}
		ee := models.Errorf(models.KindReferential, missing[0], "selected_exists", nil, msgNotInSource)
		ee.Untouched = true
		return ee
	}

	reservedIDs := make(map[string]bool)
	assetsBySrc := make(map[string]*assetCopy)
	claimed := make(map[string]bool)

	// 2. Hotkeys.
	for _, id := range dedupe(spec.HotkeyIDs) {
		h := p.Src.Hotkey(id)
		elementOK := true

		var resolved string
		if file := h.File(); file != "" {
			path, found := document.ResolveAsset(p.SrcDir, file)
			switch {
			case found:
				resolved = path
			case spec.Strict:
				p.fail(models.KindReferential, id, "asset_exists", msgAssetMissing)
				elementOK = false
			default:
				p.warn(models.KindReferential, id, "asset_exists", msgAssetMissing)
			}
		}

		if !spec.RegenerateIDs && p.Dst.Hotkey(id) != nil {
			p.fail(models.KindConflict, id, "id_unique", msgIDExists)
			elementOK = false
		}
		if !elementOK {
			continue
		}

		c := h.Clone()
		if spec.RegenerateIDs {
			newID, err := p.Dst.NewHotkeyID(reservedIDs)
			if err != nil {
				return models.Errorf(models.KindIO, id, "id_generate", err, "could not generate identifier")
			}
			c.SetID(newID)
			reservedIDs[newID] = true
			p.IDMap[id] = newID
		} else {
			reservedIDs[id] = true
		}

		if spec.CopyAssets && resolved != "" {
			a, ok := assetsBySrc[resolved]
			if !ok {
				var err error
				a, err = planAsset(p, resolved, claimed)
				if err != nil {
					return models.Errorf(models.KindIO, id, "asset_plan", err, "could not plan asset copy")
				}
				a.Owner = c.ID()
				assetsBySrc[resolved] = a
				p.Assets = append(p.Assets, a)
			}
			if newFile := targetRef(p, h.File(), a, claimed); newFile != h.File() {
				c.SetFile(newFile)
				p.Changelog = append(p.Changelog, fmt.Sprintf("hotkey %s: file %s renamed to %s", c.ID(), h.File(), newFile))
			}
		}

		p.Hotkeys = append(p.Hotkeys, plannedHotkey{SourceID: id, Hotkey: c})
		p.Changelog = append(p.Changelog, fmt.Sprintf("add hotkey %q (%s)", c.Name(), c.ID()))
	}

	// 3. Parameter mappings.
	var known map[string]bool
	if spec.RequireKnownOutputs && len(spec.MappingIDs) > 0 {
		var ok bool
		known, ok = document.KnownParameters(p.Dst, p.DstDir)
		if !ok {
			known = nil
			p.warn(models.KindReferential, "target", "known_outputs", msgOutputsUnknown)
		}
	}
	reservedNames := p.Dst.MappingNames()
	for _, name := range dedupe(spec.MappingIDs) {
		m := p.Src.Mapping(name)
		elementOK := true

		if known != nil && m.Output() != "" && !known[m.Output()] {
			msg := fmt.Sprintf(msgUnknownOutput, m.Output())
			if spec.Strict {
				p.fail(models.KindReferential, name, "known_output", msg)
				elementOK = false
			} else {
				p.warn(models.KindReferential, name, "known_output", msg)
			}
		}
		if !spec.RegenerateIDs && reservedNames[name] {
			p.fail(models.KindConflict, name, "id_unique", msgIDExists)
			elementOK = false
		}
		if !elementOK {
			continue
		}

		c := m.Clone()
		if spec.RegenerateIDs && reservedNames[name] {
			newName := uniqueName(name, reservedNames)
			c.SetName(newName)
			p.IDMap[name] = newName
		}
		reservedNames[c.Name()] = true
		p.Mappings = append(p.Mappings, plannedMapping{SourceName: name, Mapping: c})
		p.Changelog = append(p.Changelog, fmt.Sprintf("add mapping %q (%s -> %s)", c.Name(), c.Input(), c.Output()))
	}
	return nil
}

// planAsset decides where a source asset goes in the target folder: same
// relative location, skipped when an identical file is already there,
// renamed name_2, name_3, ... when a different file occupies the name.
func planAsset(p *plan, src string, claimed map[string]bool) (*assetCopy, error) {
	rel, err := storage.RelSlash(p.SrcDir, src)
	if err != nil {
		return nil, err
	}
	srcFP, _, err := checksum.File(src, checksum.Default)
	if err != nil {
		return nil, err
	}

	dir, base := path.Split(rel)
	for n := 1; ; n++ {
		candidate := rel
		if n > 1 {
			candidate = dir + numbered(base, n)
		}
		if claimed[candidate] {
			continue
		}
		dst, err := storage.ResolveUnder(p.DstDir, candidate)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			claimed[candidate] = true
			return &assetCopy{Src: src, Dst: dst, Rel: candidate}, nil
		}
		same, err := checksum.MatchFile(dst, srcFP)
		if err != nil {
			return nil, err
		}
		if same {
			claimed[candidate] = true
			return &assetCopy{Src: src, Dst: dst, Rel: candidate, Skip: true}, nil
		}
	}
}

// numbered turns "smile.exp3.json" into "smile_2.exp3.json".
func numbered(base string, n int) string {
	if i := strings.Index(base, "."); i > 0 {
		return fmt.Sprintf("%s_%d%s", base[:i], n, base[i:])
	}
	return fmt.Sprintf("%s_%d", base, n)
}

// rewriteFile points a hotkey's File at the target asset name, keeping the
// directory form the source used.
func rewriteFile(file, rel string) string {
	newBase := path.Base(rel)
	dir := path.Dir(filepath.ToSlash(file))
	if dir == "." {
		return newBase
	}
	return dir + "/" + newBase
}

// targetRef returns the File value under which the target model finds a.
// The source's reference form is kept unless another file in the target
// folder would be found first, in which case the full relative path is used.
func targetRef(p *plan, file string, a *assetCopy, claimed map[string]bool) string {
	ref := rewriteFile(file, a.Rel)
	if resolvesTo(p.DstDir, ref, claimed) == a.Rel {
		return ref
	}
	return a.Rel
}

// resolvesTo is the relative path ref will resolve to in dstDir once the
// claimed assets are in place, or "" when nothing matches.
func resolvesTo(dstDir, ref string, claimed map[string]bool) string {
	for _, rel := range document.AssetCandidates(ref) {
		if claimed[rel] {
			return rel
		}
		abs, err := storage.ResolveUnder(dstDir, rel)
		if err != nil {
			continue
		}
		if storage.Exists(abs) {
			return rel
		}
	}
	return ""
}

// uniqueName derives "Name (2)", "Name (3)", ... until unused.
func uniqueName(name string, taken map[string]bool) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
