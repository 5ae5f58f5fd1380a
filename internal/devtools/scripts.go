package devtools

import (
	"encoding/json"
	"fmt"
)

// The extensions page is built from nested web components, so every lookup
// has to descend through each component's shadow root.

// listScript returns one {name, idText, hasReloadControl} object per
// installed extension. It throws when the page structure is missing.
const listScript = `(() => {
  const manager = document.querySelector("extensions-manager");
  if (!manager || !manager.shadowRoot) {
    throw new Error("extensions-manager not available");
  }
  const list = manager.shadowRoot.querySelector("extensions-item-list");
  if (!list || !list.shadowRoot) {
    throw new Error("extensions-item-list not available");
  }
  return Array.from(list.shadowRoot.querySelectorAll("extensions-item")).map((item) => {
    const sr = item.shadowRoot;
    return {
      name: (sr && sr.querySelector("#name")?.textContent?.trim()) || "",
      idText: (sr && sr.querySelector("#extension-id")?.textContent?.trim()) || "",
      hasReloadControl: Boolean(sr && sr.querySelector("#dev-reload-button")),
    };
  });
})()`

// reloadScriptFormat clicks the reload control of the item whose id label
// carries exactly the given identifier and reports whether a control was
// clicked.
const reloadScriptFormat = `((id) => {
  if (!/^[a-p]{32}$/.test(id)) {
    return false;
  }
  const manager = document.querySelector("extensions-manager");
  const list = manager && manager.shadowRoot && manager.shadowRoot.querySelector("extensions-item-list");
  if (!list || !list.shadowRoot) {
    return false;
  }
  for (const item of list.shadowRoot.querySelectorAll("extensions-item")) {
    const sr = item.shadowRoot;
    const idText = (sr && sr.querySelector("#extension-id")?.textContent) || "";
    const match = idText.match(/[a-p]{32}/);
    if (!match || match[0] !== id) {
      continue;
    }
    const button = sr.querySelector("#dev-reload-button");
    if (!button) {
      return false;
    }
    button.click();
    return true;
  }
  return false;
})(%s)`

func reloadScript(id string) (string, error) {
	arg, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("encoding extension id: %w", err)
	}

	return fmt.Sprintf(reloadScriptFormat, arg), nil
}
