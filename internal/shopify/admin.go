package shopify

import (
	"context"
	"fmt"
)

// Metafield is one MetafieldsSetInput.
type Metafield struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// MetafieldIdentifier names a metafield to delete.
type MetafieldIdentifier struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

// Product is the subset of a product shown in the CSV mapping picker.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Handle   string `json:"handle"`
	ImageURL string `json:"image,omitempty"`
}

const shopIDQuery = `{ shop { id } }`

// ShopID returns the shop's global id, used as metafield owner.
func (c *Client) ShopID(ctx context.Context, shop string) (string, error) {
	var data struct {
		Shop struct {
			ID string `json:"id"`
		} `json:"shop"`
	}
	if err := c.Do(ctx, shop, shopIDQuery, nil, &data); err != nil {
		return "", err
	}
	if data.Shop.ID == "" {
		return "", fmt.Errorf("shopify: shop id missing from response")
	}
	return data.Shop.ID, nil
}

const metafieldsSetMutation = `mutation MetafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { key value }
    userErrors { field message }
  }
}`

// SetMetafields writes metafields in one mutation.
func (c *Client) SetMetafields(ctx context.Context, shop string, fields []Metafield) error {
	if len(fields) == 0 {
		return nil
	}
	var data struct {
		MetafieldsSet struct {
			UserErrors UserErrors `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	vars := map[string]any{"metafields": fields}
	if err := c.Do(ctx, shop, metafieldsSetMutation, vars, &data); err != nil {
		return err
	}
	if len(data.MetafieldsSet.UserErrors) > 0 {
		return data.MetafieldsSet.UserErrors
	}
	return nil
}

const metafieldsDeleteMutation = `mutation MetafieldsDelete($metafields: [MetafieldIdentifierInput!]!) {
  metafieldsDelete(metafields: $metafields) {
    deletedMetafields { key }
    userErrors { field message }
  }
}`

// DeleteMetafields removes metafields. Identifiers that do not exist are
// not an error.
func (c *Client) DeleteMetafields(ctx context.Context, shop string, ids []MetafieldIdentifier) error {
	if len(ids) == 0 {
		return nil
	}
	var data struct {
		MetafieldsDelete struct {
			UserErrors UserErrors `json:"userErrors"`
		} `json:"metafieldsDelete"`
	}
	vars := map[string]any{"metafields": ids}
	if err := c.Do(ctx, shop, metafieldsDeleteMutation, vars, &data); err != nil {
		return err
	}
	if len(data.MetafieldsDelete.UserErrors) > 0 {
		return data.MetafieldsDelete.UserErrors
	}
	return nil
}

const productsQuery = `query ProductsForDropdown($first: Int!) {
  products(first: $first) {
    edges {
      node {
        id
        title
        handle
        featuredImage { url }
      }
    }
  }
}`

// Products returns the first n products of the shop.
func (c *Client) Products(ctx context.Context, shop string, first int) ([]Product, error) {
	var data struct {
		Products struct {
			Edges []struct {
				Node struct {
					ID            string `json:"id"`
					Title         string `json:"title"`
					Handle        string `json:"handle"`
					FeaturedImage *struct {
						URL string `json:"url"`
					} `json:"featuredImage"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := c.Do(ctx, shop, productsQuery, map[string]any{"first": first}, &data); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(data.Products.Edges))
	for _, e := range data.Products.Edges {
		p := Product{ID: e.Node.ID, Title: e.Node.Title, Handle: e.Node.Handle}
		if e.Node.FeaturedImage != nil {
			p.ImageURL = e.Node.FeaturedImage.URL
		}
		products = append(products, p)
	}
	return products, nil
}
