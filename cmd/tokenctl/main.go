package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"insight-reports/auth"
	"insight-reports/config"
	"insight-reports/utils"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	caller := os.Args[1]
	minutes := 0
	if len(os.Args) > 2 {
		m, err := strconv.Atoi(os.Args[2])
		if err != nil || m <= 0 {
			fmt.Println("minutes must be a positive integer")
			os.Exit(1)
		}
		minutes = m
	}

	// Le secret vient du config.yaml si présent, sinon il est demandé
	// au terminal.
	secret := ""
	if cfg, err := config.Load("config.yaml"); err == nil {
		secret = cfg.JWT.Secret
		if minutes == 0 {
			minutes = cfg.JWT.ExpirationMinutes
		}
	}
	if secret == "" {
		s, err := utils.PromptSecret("Signing secret")
		if err != nil {
			fmt.Println("Failed to read secret:", err)
			os.Exit(1)
		}
		secret = strings.TrimSpace(s)
	}
	if secret == "" {
		fmt.Println("A signing secret is required")
		os.Exit(1)
	}
	if minutes == 0 {
		minutes = 60
	}

	token, err := auth.GenerateToken(secret, caller, minutes)
	if err != nil {
		fmt.Println("Failed to generate token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func usage() {
	fmt.Println(`Usage: tokenctl <caller> [minutes]

Génère un jeton Bearer pour l'appelant donné.
Le secret est lu dans config.yaml ou demandé au terminal.`)
}
