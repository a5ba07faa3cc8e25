package steam

import "sort"

// PlatformApps are app ids whose news covers Steam itself rather than a game.
// 593110 feeds the client's news megaphone and is absent from the app list.
var PlatformApps = map[uint]string{
	753:    "Steam",
	221410: "Steam for Linux",
	223300: "Steam Hardware",
	250820: "SteamVR",
	353370: "Steam Controller",
	353380: "Steam Link",
	358720: "SteamVR Developer Hardware",
	596420: "Steam Audio",
	593110: "Steam News",
	613220: "Steam 360 Video Player",
}

// PlatformAppIDs returns the platform ids in ascending order
func PlatformAppIDs() []uint {
	ids := make([]uint, 0, len(PlatformApps))
	for id := range PlatformApps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsPlatformApp reports whether id is one of PlatformApps
func IsPlatformApp(id uint) bool {
	_, ok := PlatformApps[id]
	return ok
}
