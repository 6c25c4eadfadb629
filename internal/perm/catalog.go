// Package perm defines the permission catalog and the bit-vector encoding
// used to persist role permissions.
package perm

// Permission names. The catalog order is load-bearing: a permission's
// position is its bit index in every stored vector, so entries are
// append-only and must never be reordered.
const (
	IsOfficer         = "IS_OFFICER"
	IsJudge           = "IS_JUDGE"
	ReadMembers       = "READ_MEMBERS"
	EditMembers       = "EDIT_MEMBERS"
	ReadHackers       = "READ_HACKERS"
	EditHackers       = "EDIT_HACKERS"
	ReadClubData      = "READ_CLUB_DATA"
	ReadHackData      = "READ_HACK_DATA"
	ReadClubEvent     = "READ_CLUB_EVENT"
	EditClubEvent     = "EDIT_CLUB_EVENT"
	CheckinClubEvent  = "CHECKIN_CLUB_EVENT"
	ReadHackEvent     = "READ_HACK_EVENT"
	EditHackEvent     = "EDIT_HACK_EVENT"
	CheckinHackEvent  = "CHECKIN_HACK_EVENT"
	EmailPortal       = "EMAIL_PORTAL"
	ReadForms         = "READ_FORMS"
	ReadFormResponses = "READ_FORM_RESPONSES"
	EditForms         = "EDIT_FORMS"
)

// Definition describes one catalog entry.
type Definition struct {
	Name        string
	Index       int
	DisplayName string
	Description string
}

var catalog = []Definition{
	{Name: IsOfficer, DisplayName: "Is Officer", Description: "Grants access to sensitive club officer pages."},
	{Name: IsJudge, DisplayName: "Is Judge", Description: "Grants access to the judging system."},
	{Name: ReadMembers, DisplayName: "Read Members", Description: "Grants access to the list of club members."},
	{Name: EditMembers, DisplayName: "Edit Members", Description: "Allows editing member data, including deletion."},
	{Name: ReadHackers, DisplayName: "Read Hackers", Description: "Grants access to the list of hackers, and their hackathons."},
	{Name: EditHackers, DisplayName: "Edit Hackers", Description: "Allows editing hacker data, including approval, rejection, deletion, etc."},
	{Name: ReadClubData, DisplayName: "Read Club Data", Description: "Grants access to club statistics, such as demographics."},
	{Name: ReadHackData, DisplayName: "Read Hackathon Data", Description: "Grants access to hackathon statistics, such as demographics."},
	{Name: ReadClubEvent, DisplayName: "Read Club Events", Description: "Grants access to club event data, such as attendance."},
	{Name: EditClubEvent, DisplayName: "Edit Club Events", Description: "Allows creating, editing, or deleting club events."},
	{Name: CheckinClubEvent, DisplayName: "Club Event Check-in", Description: "Allows the user to check members into club events."},
	{Name: ReadHackEvent, DisplayName: "Read Hackathon Events", Description: "Grants access to hackathon event data, such as attendance."},
	{Name: EditHackEvent, DisplayName: "Edit Hackathon Events", Description: "Allows creating, editing, or deleting hackathon events."},
	{Name: CheckinHackEvent, DisplayName: "Hackathon Event Check-in", Description: "Allows the user to check hackers into hackathon events, including the primary check-in."},
	{Name: EmailPortal, DisplayName: "Email Portal", Description: "Grants access to the email queue portal."},
	{Name: ReadForms, DisplayName: "Read Forms", Description: "Grants access to created forms, but not their responses."},
	{Name: ReadFormResponses, DisplayName: "Read Form Responses", Description: "Grants access to form responses."},
	{Name: EditForms, DisplayName: "Edit Forms", Description: "Allows creating, editing, or deleting forms."},
}

var indexByName = func() map[string]int {
	m := make(map[string]int, len(catalog))
	for i := range catalog {
		catalog[i].Index = i
		m[catalog[i].Name] = i
	}
	return m
}()

// Size returns the number of permissions in the catalog, which is also the
// required length of every stored vector.
func Size() int {
	return len(catalog)
}

// IndexOf returns the bit index for a permission name.
func IndexOf(name string) (int, bool) {
	i, ok := indexByName[name]
	return i, ok
}

// NameAt returns the permission name at the given bit index.
func NameAt(index int) (string, bool) {
	if index < 0 || index >= len(catalog) {
		return "", false
	}
	return catalog[index].Name, true
}

// All returns the catalog entries in bit-index order. The returned slice is
// a copy; callers may not mutate the catalog.
func All() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}
