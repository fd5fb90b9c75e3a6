package banner

import (
	"ratepace/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
                 __                                
   _________ _  / /____  ____  ____ _________  
  / ___/ __ '/ / __/ _ \/ __ \/ __ '/ ___/ _ \ 
 / /  / /_/ / / /_/  __/ /_/ / /_/ / /__/  __/ 
/_/   \__,_/  \__/\___/ .___/\__,_/\___/\___/  
                     /_/                       `

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
