// Package fake provides a stand-in Minecraft status server and random
// status payloads for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/woozymasta/mcping/internal/models"
)

// Generate returns a randomized status payload. It mixes legacy and
// component descriptions, optional player samples and missing fields,
// the way real servers do.
func Generate() models.StatusResponse {
	versions := []models.Version{
		{Name: "1.16.5", Protocol: 754},
		{Name: "1.20.1", Protocol: 763},
		{Name: "Paper 1.21.4", Protocol: 769},
		{Name: "Velocity 3.3.0", Protocol: 767},
	}
	legacyMotds := []string{
		"§aA Minecraft Server",
		"§6§lSkyblock §r§7- §bnow with islands",
		"§cHardcore §8| §fseason %d",
		"§e§oWelcome!\n§7Join us on Discord",
	}
	colors := []string{"gold", "aqua", "red", "green", "light_purple", "#FF8800"}
	names := []string{"Notch", "jeb_", "Dinnerbone", "Grumm", "Steve", "Alex", "Herobrine"}

	status := models.StatusResponse{}

	// 10% chance for a server that hides its version
	if rand.Float32() >= 0.1 {
		v := versions[rand.Intn(len(versions))]
		status.Version = &v
	}

	maxPlayers := []int{20, 50, 100, 500}[rand.Intn(4)]
	players := &models.Players{Max: maxPlayers, Online: rand.Intn(maxPlayers + 1)}
	if players.Online > 0 && rand.Float32() < 0.7 {
		sample := min(players.Online, 5)
		for i := 0; i < sample; i++ {
			players.Sample = append(players.Sample, models.Sample{
				Name: names[rand.Intn(len(names))],
				ID:   uuid.NewString(),
			})
		}
	}
	status.Players = players

	if rand.Float32() < 0.5 {
		motd := legacyMotds[rand.Intn(len(legacyMotds))]
		if strings.Contains(motd, "%d") {
			motd = fmt.Sprintf(motd, rand.Intn(10)+1)
		}
		status.Description = models.LegacyText(motd)
	} else {
		title := "Fake Server"
		sub := fmt.Sprintf("\n%d players online", players.Online)
		color := colors[rand.Intn(len(colors))]
		bold := true
		status.Description = models.ComponentDescription(models.Component{
			Text:  &title,
			Color: &color,
			Bold:  &bold,
			Extra: []models.Description{*models.LegacyText(sub)},
		})
	}

	return status
}
