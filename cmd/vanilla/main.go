package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL      string
	SessionToken string
	OutFormat    string // "json" | "text"
	HTTP         *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	req, err := http.NewRequest(method, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Session-Token", c.SessionToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) run(method, path string, body []byte) error {
	status, out, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("%s %s fallo: status=%d body=%s", method, path, status, string(out))
	}
	c.print(status, out)
	return nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("VANILLA_URL", "http://localhost:8080")
		token   = envOr("VANILLA_SESSION_TOKEN", "")
		out     = envOr("VANILLA_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "vanilla",
		Short: "CLI admin para el identity provider (requiere identidad god)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("falta session token (flag --session-token o env VANILLA_SESSION_TOKEN)")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del servicio (env VANILLA_URL)")
	root.PersistentFlags().StringVar(&token, "session-token", token, "Token de sesión administrativa (env VANILLA_SESSION_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, SessionToken: token, OutFormat: out, HTTP: &http.Client{Timeout: 30 * time.Second}}

	// ─── stores ───
	storesCmd := &cobra.Command{Use: "stores", Short: "Operaciones sobre stores (tenants)"}

	storesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Listar stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/stores", nil)
		},
	})
	storesCmd.AddCommand(&cobra.Command{
		Use:   "get <store>",
		Short: "Mostrar un store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/"+args[0], nil)
		},
	})

	var storeFile string
	storeCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Crear un store desde un JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(storeFile)
			if err != nil {
				return err
			}
			return cl.run("POST", "/stores", body)
		},
	}
	storeCreateCmd.Flags().StringVar(&storeFile, "file", "", "Ruta al JSON con los atributos (- para stdin)")
	_ = storeCreateCmd.MarkFlagRequired("file")
	storesCmd.AddCommand(storeCreateCmd)

	var storeUpdateFile string
	storeUpdateCmd := &cobra.Command{
		Use:   "update <store>",
		Short: "Actualizar un store desde un JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(storeUpdateFile)
			if err != nil {
				return err
			}
			return cl.run("PUT", "/"+args[0], body)
		},
	}
	storeUpdateCmd.Flags().StringVar(&storeUpdateFile, "file", "", "Ruta al JSON con los atributos (- para stdin)")
	_ = storeUpdateCmd.MarkFlagRequired("file")
	storesCmd.AddCommand(storeUpdateCmd)

	// ─── clients ───
	clientsCmd := &cobra.Command{Use: "clients", Short: "Operaciones sobre OAuth clients"}

	clientsCmd.AddCommand(&cobra.Command{
		Use:   "list <store>",
		Short: "Listar clients de un store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/"+args[0]+"/clients", nil)
		},
	})

	var clientTitle, clientRedirect string
	var clientSkipDialog bool
	clientCreateCmd := &cobra.Command{
		Use:   "create <store>",
		Short: "Registrar un client (devuelve api_key y secret)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]any{
				"title":                      clientTitle,
				"oauth_redirect_uri":         clientRedirect,
				"skips_authorization_dialog": clientSkipDialog,
			})
			return cl.run("POST", "/"+args[0]+"/clients", body)
		},
	}
	clientCreateCmd.Flags().StringVar(&clientTitle, "title", "", "Título visible en el diálogo de autorización")
	clientCreateCmd.Flags().StringVar(&clientRedirect, "redirect-uri", "", "Redirect URI registrada")
	clientCreateCmd.Flags().BoolVar(&clientSkipDialog, "skip-dialog", false, "Conceder sin mostrar el diálogo")
	_ = clientCreateCmd.MarkFlagRequired("title")
	_ = clientCreateCmd.MarkFlagRequired("redirect-uri")
	clientsCmd.AddCommand(clientCreateCmd)

	// ─── users ───
	usersCmd := &cobra.Command{Use: "users", Short: "Operaciones sobre usuarios"}

	var findName, findMobile, findEmail string
	userFindCmd := &cobra.Command{
		Use:   "find <store>",
		Short: "Buscar usuarios por name/mobile/email exactos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if findName != "" {
				q.Set("name", findName)
			}
			if findMobile != "" {
				q.Set("mobile_number", findMobile)
			}
			if findEmail != "" {
				q.Set("email_address", findEmail)
			}
			if len(q) == 0 {
				return fmt.Errorf("al menos un criterio: --name, --mobile o --email")
			}
			return cl.run("GET", "/"+args[0]+"/users/find?"+q.Encode(), nil)
		},
	}
	userFindCmd.Flags().StringVar(&findName, "name", "", "Nombre exacto")
	userFindCmd.Flags().StringVar(&findMobile, "mobile", "", "Número de móvil")
	userFindCmd.Flags().StringVar(&findEmail, "email", "", "Dirección de email")
	usersCmd.AddCommand(userFindCmd)

	usersCmd.AddCommand(&cobra.Command{
		Use:   "get <store> <id>",
		Short: "Mostrar un usuario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/"+args[0]+"/users/"+args[1], nil)
		},
	})

	var userFile string
	userCreateCmd := &cobra.Command{
		Use:   "create <store>",
		Short: "Alta administrativa de usuario desde un JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readPayload(userFile)
			if err != nil {
				return err
			}
			return cl.run("POST", "/"+args[0]+"/users/create", body)
		},
	}
	userCreateCmd.Flags().StringVar(&userFile, "file", "", "Ruta al JSON con los atributos (- para stdin)")
	_ = userCreateCmd.MarkFlagRequired("file")
	usersCmd.AddCommand(userCreateCmd)

	usersCmd.AddCommand(&cobra.Command{
		Use:   "delete <store> <id>",
		Short: "Soft delete de un usuario",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("DELETE", "/"+args[0]+"/users/"+args[1], nil)
		},
	})

	root.AddCommand(storesCmd, clientsCmd, usersCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
