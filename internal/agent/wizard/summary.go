package wizard

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/coresight/coresight/internal/agent"
)

func runSummary(cfg *agent.Config) (bool, error) {
	entity := cfg.EntityID
	if entity == "" {
		entity = "<by hostname>"
	}
	health := "disabled"
	if cfg.HealthPort > 0 {
		health = fmt.Sprintf(":%d/health", cfg.HealthPort)
	}

	fmt.Println()
	fmt.Println("  ┌─────────────── Summary ───────────────┐")
	fmt.Printf("  │ Server:   %-28s │\n", truncate(cfg.ServerURL, 28))
	fmt.Printf("  │ Password: %-28s │\n", "********")
	fmt.Printf("  │ TLS Skip: %-28v │\n", cfg.InsecureSkipTLS)
	fmt.Printf("  │ Entity:   %-28s │\n", truncate(entity, 28))
	fmt.Printf("  │ Interval: %-28s │\n", cfg.Interval())
	fmt.Printf("  │ Health:   %-28s │\n", health)
	fmt.Printf("  │ Disk:     %-28s │\n", truncate(cfg.DiskPath, 28))
	for _, ip := range agent.ListInterfaceIPs() {
		fmt.Printf("  │   - %-33s │\n", truncate(ip, 33))
	}
	fmt.Println("  └────────────────────────────────────────┘")
	fmt.Println()

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
