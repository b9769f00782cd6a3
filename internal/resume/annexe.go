package resume

import "sort"

// MaxAnnexes 是单份简历可关联的附件上限。
const MaxAnnexes = 15

// SortedAnnexeIDs 按 Order 升序返回附件 id，并丢弃目录中已不存在的悬空引用。
func SortedAnnexeIDs(refs []AnnexeRef, catalog map[string]Annexe) []string {
	live := make([]AnnexeRef, 0, len(refs))
	for _, ref := range refs {
		if ref.AnnexeID == "" {
			continue
		}
		if _, ok := catalog[ref.AnnexeID]; !ok {
			continue
		}
		live = append(live, ref)
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].Order < live[j].Order })

	ids := make([]string, len(live))
	for i, ref := range live {
		ids[i] = ref.AnnexeID
	}
	return ids
}

// ResolveAnnexes 返回按顺序排列的附件实体。
func ResolveAnnexes(refs []AnnexeRef, all []Annexe) []Annexe {
	catalog := CatalogOf(all)
	ids := SortedAnnexeIDs(refs, catalog)
	out := make([]Annexe, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog[id])
	}
	return out
}

// CatalogOf 以 id 为键索引附件列表。
func CatalogOf(all []Annexe) map[string]Annexe {
	catalog := make(map[string]Annexe, len(all))
	for _, a := range all {
		catalog[a.ID] = a
	}
	return catalog
}

// AssignmentsFrom 把有序 id 列表转换为从 1 开始的连续引用。
func AssignmentsFrom(ids []string) []AnnexeRef {
	refs := make([]AnnexeRef, len(ids))
	for i, id := range ids {
		refs[i] = AnnexeRef{AnnexeID: id, Order: i + 1}
	}
	return refs
}
