package document

import (
	"fmt"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/idgen"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	// AssetDir enables asset resolution checks against a model folder.
	AssetDir string
}

// Validate checks a parsed document. It never mutates doc and touches the
// filesystem only to resolve assets when opts.AssetDir is set.
func Validate(doc *Document, opts ValidateOptions) models.Report {
	var rep models.Report

	seenIDs := make(map[string]bool)
	for i, h := range doc.Hotkeys {
		element := hotkeyElement(h, i)
		id, hasID := h.Fields.String("HotkeyID")
		switch {
		case !hasID:
			rep.AddError(models.KindValidation, element, "hotkey_id", "missing HotkeyID")
		case !idgen.IsValid(id):
			rep.AddError(models.KindValidation, element, "hotkey_id", fmt.Sprintf("malformed HotkeyID %q", id))
		case seenIDs[id]:
			rep.AddError(models.KindValidation, element, "unique_id", "duplicate hotkey id")
		}
		seenIDs[id] = true

		if _, ok := h.Fields.String("Name"); !ok {
			rep.AddError(models.KindValidation, element, "name_present", "missing Name")
		}
		tag, ok := h.Fields.String("Action")
		if !ok {
			rep.AddError(models.KindValidation, element, "action_present", "missing Action")
		} else if !ParseAction(tag).Known() {
			rep.AddWarning(models.KindValidation, element, "action_kind", fmt.Sprintf("unknown action %q, kept as-is", tag))
		}

		if opts.AssetDir != "" && h.File() != "" {
			if _, found := ResolveAsset(opts.AssetDir, h.File()); !found {
				rep.AddWarning(models.KindReferential, element, "asset_exists", fmt.Sprintf("file not found: %s", h.File()))
			}
		}
	}

	seenNames := make(map[string]bool)
	for i, m := range doc.Mappings {
		name, ok := m.Fields.String("Name")
		element := name
		if !ok || name == "" {
			element = fmt.Sprintf("%s[%d]", FieldParameters, i)
			rep.AddError(models.KindValidation, element, "name_present", "mapping missing Name")
			continue
		}
		if seenNames[name] {
			rep.AddError(models.KindValidation, element, "unique_id", "duplicate mapping name")
		}
		seenNames[name] = true
	}

	if raw, ok := doc.Root.Get(FieldFileReferences); ok && rawKind(raw) != 'o' {
		rep.AddWarning(models.KindStructural, FieldFileReferences, "file_references", "FileReferences should be an object")
	}
	return rep
}

func hotkeyElement(h *Hotkey, i int) string {
	if id := h.ID(); id != "" {
		return id
	}
	return fmt.Sprintf("%s[%d]", FieldHotkeys, i)
}
