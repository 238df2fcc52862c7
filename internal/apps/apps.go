// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apps maps Steam application ids to the names used on the CLI.
package apps

// App describes one known Steam application.
type App struct {
	ID        int
	Name      string
	ShortName string
}

// Fallback values for ids we do not recognize.
const (
	UnknownName      = "Unknown Application Name"
	UnknownShortName = "unknown_app"
)

var known = []App{
	{730, "Counter-Strike: Global Offensive", "csgo"},
	{620, "Portal 2", "portal2"},
	{723, "Steam", "steam"},
	{570, "Dota 2", "dota2"},
	{440, "Team Fortress 2", "tf2"},
}

var (
	byID        = map[int]App{}
	byShortName = map[string]App{}
)

func init() {
	for _, app := range known {
		byID[app.ID] = app
		byShortName[app.ShortName] = app
	}
}

// ID returns the application id for a CLI short name, or false if unknown.
func ID(shortName string) (int, bool) {
	app, ok := byShortName[shortName]
	return app.ID, ok
}

// Name returns the display name for an application id.
func Name(id int) string {
	if app, ok := byID[id]; ok {
		return app.Name
	}
	return UnknownName
}

// ShortName returns the CLI short name for an application id.
func ShortName(id int) string {
	if app, ok := byID[id]; ok {
		return app.ShortName
	}
	return UnknownShortName
}

// ShortNames lists every known short name, for usage text.
func ShortNames() []string {
	names := make([]string, 0, len(known))
	for _, app := range known {
		names = append(names, app.ShortName)
	}
	return names
}
